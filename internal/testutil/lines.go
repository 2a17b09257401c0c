package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

// TelemetryLine 设备端常用的一行遥测数据
const TelemetryLine = "x 123; y 456; lux 0.50; roll 1.20; yaw 0.30; pitch 0.10; left 0; right 1;"

// CommandLine 服务端发给设备的命令行
const CommandLine = "croce 1; run 1; tipo_faro anabbagliante; TOH 30; TOV 20; inclinazione 5;"

// Line 按 "name value; " 格式拼接字段，最后一个字段也带 ';'
func Line(fields ...protocol.Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(protocol.ValueSeparator)
		}
		b.WriteString(f.Name)
		b.WriteByte(protocol.ValueSeparator)
		b.WriteString(f.Value)
		b.WriteByte(protocol.FieldSeparator)
	}
	return b.String()
}

// RandomTelemetry 生成一行随机遥测数据
func RandomTelemetry(rng *rand.Rand) string {
	return Line(
		protocol.Field{Name: protocol.FieldX, Value: fmt.Sprintf("%d", rng.Intn(640))},
		protocol.Field{Name: protocol.FieldY, Value: fmt.Sprintf("%d", rng.Intn(320))},
		protocol.Field{Name: protocol.FieldLux, Value: fmt.Sprintf("%.2f", rng.Float64()*100)},
		protocol.Field{Name: protocol.FieldRoll, Value: fmt.Sprintf("%.2f", rng.Float64()*10-5)},
		protocol.Field{Name: protocol.FieldYaw, Value: fmt.Sprintf("%.2f", rng.Float64()*10-5)},
		protocol.Field{Name: protocol.FieldPitch, Value: fmt.Sprintf("%.2f", rng.Float64()*10-5)},
		protocol.Field{Name: protocol.FieldLeft, Value: fmt.Sprintf("%d", rng.Intn(2))},
		protocol.Field{Name: protocol.FieldRight, Value: fmt.Sprintf("%d", rng.Intn(2))},
		protocol.Field{Name: protocol.FieldUp, Value: fmt.Sprintf("%d", rng.Intn(2))},
		protocol.Field{Name: protocol.FieldDown, Value: fmt.Sprintf("%d", rng.Intn(2))},
	)
}
