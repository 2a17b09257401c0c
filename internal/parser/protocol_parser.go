package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

var (
	// ErrNoFields 行中没有任何可识别的字段
	ErrNoFields = errors.New("没有可识别的字段")
	// ErrIdle 设备发送的保活行
	ErrIdle = errors.New("空闲保活行")
	// ErrTruncated 严格模式下字段值超出长度限制
	ErrTruncated = errors.New("字段值被截断")
)

// TruncationMode 值超长时的处理方式
type TruncationMode string

const (
	// TruncationStrict 拒绝含截断字段的行
	TruncationStrict TruncationMode = "strict"
	// TruncationSilent 保留截断后的值（兼容旧行为）
	TruncationSilent TruncationMode = "silent"
)

// DefaultMaxValueLen 与设备端 64 字节缓冲一致
const DefaultMaxValueLen = 63

type Options struct {
	// Fields 需要提取的字段，为空时提取行中所有字段
	Fields      []string
	MaxValueLen int
	Truncation  TruncationMode
}

type Parser struct {
	fields      []string
	maxValueLen int
	truncation  TruncationMode
}

func NewParser(opts Options) *Parser {
	if opts.MaxValueLen <= 0 {
		opts.MaxValueLen = DefaultMaxValueLen
	}
	if opts.Truncation == "" {
		opts.Truncation = TruncationStrict
	}
	return &Parser{
		fields:      append([]string(nil), opts.Fields...),
		maxValueLen: opts.MaxValueLen,
		truncation:  opts.Truncation,
	}
}

// Parse 解析一行数据
func (p *Parser) Parse(deviceID, line string) *protocol.ParseResult {
	result := &protocol.ParseResult{
		Success: false,
	}

	if strings.TrimSpace(line) == protocol.IdleLine {
		result.Error = ErrIdle
		return result
	}

	fields := p.fields
	if len(fields) == 0 {
		fields = Names(line)
	}

	data := &protocol.Telemetry{
		DeviceID:  deviceID,
		Timestamp: time.Now(),
		Values:    make(map[string]string, len(fields)),
		Raw:       line,
	}

	// 一次调用内复用输出缓冲
	buf := make([]byte, p.maxValueLen+1)
	for _, name := range fields {
		n, res := Decode(name, line, buf)
		switch res {
		case protocol.NotFound:
			// 只有配置的字段才算缺失
			if len(p.fields) > 0 {
				data.Missing = append(data.Missing, name)
			}
			continue
		case protocol.FoundTruncated:
			data.Truncated = append(data.Truncated, name)
			if p.truncation == TruncationStrict {
				result.Data = data
				result.Error = fmt.Errorf("%w: %s 超过 %d 字节", ErrTruncated, name, p.maxValueLen)
				return result
			}
		}
		data.Values[name] = string(buf[:n])
	}

	if len(data.Values) == 0 {
		result.Data = data
		result.Error = ErrNoFields
		return result
	}

	result.Success = true
	result.Data = data
	return result
}

// SplitFields 宽松地拆分整行：按 ';' 分段，去掉首尾空格，按第一个空格拆成名和值
//
// 没有值的段会被跳过。重复字段全部返回，顺序与行中一致。
func SplitFields(line string) []protocol.Field {
	var out []protocol.Field
	for _, part := range strings.Split(line, string(protocol.FieldSeparator)) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, string(protocol.ValueSeparator))
		if !ok {
			continue
		}
		out = append(out, protocol.Field{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return out
}

// Names 返回行中出现的字段名（去重，按出现顺序）
func Names(line string) []string {
	fields := SplitFields(line)
	seen := make(map[string]struct{}, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		if _, ok := seen[f.Name]; ok {
			continue
		}
		seen[f.Name] = struct{}{}
		names = append(names, f.Name)
	}
	return names
}
