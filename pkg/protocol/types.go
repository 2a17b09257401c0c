package protocol

import "time"

// Result 字段查找结果
type Result uint8

const (
	// NotFound 行中没有满足边界条件的字段
	NotFound Result = iota
	// Found 找到字段，值完整写入输出缓冲
	Found
	// FoundTruncated 找到字段，但值超出输出缓冲容量被截断
	FoundTruncated
)

// OK 是否找到字段（包括被截断的情况）
func (r Result) OK() bool {
	return r == Found || r == FoundTruncated
}

func (r Result) String() string {
	switch r {
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	case FoundTruncated:
		return "found_truncated"
	default:
		return "unknown"
	}
}

// Field 行中的一个 "name value" 字段
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Telemetry 一行解析后的数据
type Telemetry struct {
	DeviceID  string            `json:"device_id"`
	Timestamp time.Time         `json:"timestamp"`
	Values    map[string]string `json:"values"`
	Missing   []string          `json:"missing,omitempty"`
	Truncated []string          `json:"truncated,omitempty"`
	Raw       string            `json:"raw,omitempty"`
}

// ParseResult 解析结果
type ParseResult struct {
	Success bool
	Data    *Telemetry
	Error   error
}

// 协议分隔符
const (
	FieldSeparator = ';'
	ValueSeparator = ' '

	// IdleLine MW28912 没有数据时发送的保活行
	IdleLine = "idle"
)

// MW28912 发出的遥测字段
const (
	FieldX     = "x"
	FieldY     = "y"
	FieldLux   = "lux"
	FieldRoll  = "roll"
	FieldYaw   = "yaw"
	FieldPitch = "pitch"
	FieldLeft  = "left"
	FieldRight = "right"
	FieldUp    = "up"
	FieldDown  = "down"
)

// MW28912 接收的命令字段
const (
	FieldCroce        = "croce"
	FieldRun          = "run"
	FieldTipoFaro     = "tipo_faro"
	FieldTOH          = "TOH"
	FieldTOV          = "TOV"
	FieldInclinazione = "inclinazione"
)

// TelemetryFields 遥测行的字段顺序
var TelemetryFields = []string{
	FieldX, FieldY, FieldLux, FieldRoll, FieldYaw,
	FieldPitch, FieldLeft, FieldRight, FieldUp, FieldDown,
}

// CommandFields 命令行的字段
var CommandFields = []string{
	FieldCroce, FieldRun, FieldTipoFaro, FieldTOH, FieldTOV, FieldInclinazione,
}

var knownFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(TelemetryFields)+len(CommandFields))
	for _, f := range TelemetryFields {
		m[f] = struct{}{}
	}
	for _, f := range CommandFields {
		m[f] = struct{}{}
	}
	return m
}()

// IsKnownField 是否为 MW28912 定义的遥测或命令字段
func IsKnownField(name string) bool {
	_, ok := knownFields[name]
	return ok
}
