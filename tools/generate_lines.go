package main

import (
	"flag"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sandrogeco/centrafari2.1/internal/parser"
	"github.com/sandrogeco/centrafari2.1/internal/state"
	"github.com/sandrogeco/centrafari2.1/internal/testutil"
	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

func main() {
	line := flag.String("line", "", "要解析的行（为空时生成）")
	random := flag.Bool("random", false, "生成随机遥测数据")
	command := flag.Bool("command", false, "生成命令行而不是遥测行")
	fields := flag.String("field", "", "要提取的字段，逗号分隔（为空时提取所有字段）")
	capacity := flag.Int("cap", 64, "输出缓冲容量（含结束符）")
	count := flag.Int("count", 1, "生成数量")
	flag.Parse()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < *count; i++ {
		l := *line
		switch {
		case l != "":
		case *command:
			l = testutil.CommandLine
		case *random:
			l = testutil.RandomTelemetry(rng)
		default:
			l = testutil.TelemetryLine
		}

		fmt.Printf("行 %d:\n", i+1)
		fmt.Printf("  文本:     %s\n", l)
		fmt.Printf("  十六进制: % x\n", []byte(l+"\n"))
		decodeAndDisplay(l, splitFields(*fields), *capacity)
		displayNumeric(l)
		fmt.Println()
	}
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// decodeAndDisplay 解析并显示每个字段
func decodeAndDisplay(line string, fields []string, capacity int) {
	if len(fields) == 0 {
		fields = parser.Names(line)
	}
	if capacity < 1 {
		capacity = 1
	}

	fmt.Printf("  解析结果 (容量 %d):\n", capacity)
	out := make([]byte, capacity)
	for _, name := range fields {
		n, res := parser.Decode(name, line, out)
		fmt.Printf("    %-14s %-16s %q %s\n", name, res, out[:n], mark(res))
	}
}

func mark(res protocol.Result) string {
	switch res {
	case protocol.Found:
		return "✓"
	case protocol.FoundTruncated:
		return "✂ 截断"
	default:
		return "✗ 未找到"
	}
}

// displayNumeric 按网关的方式把行合并到状态，再取数值（缺失时用 0）
func displayNumeric(line string) {
	store := state.NewStore()
	result := parser.NewParser(parser.Options{}).Parse("tool", line)
	if !result.Success {
		fmt.Printf("  数值: %v\n", result.Error)
		return
	}
	store.Apply(result.Data)

	fmt.Printf("  数值: TOH=%d TOV=%d lux=%.2f roll=%.2f\n",
		store.IntOr("tool", protocol.FieldTOH, 0),
		store.IntOr("tool", protocol.FieldTOV, 0),
		store.FloatOr("tool", protocol.FieldLux, 0),
		store.FloatOr("tool", protocol.FieldRoll, 0),
	)
}
