package parser

import (
	"strings"

	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

// Decode 在 line 中查找字段 field 并把值写入 out
//
// 行格式: "name value; name2 value2; ..."。字段名前必须是行首、空格或 ';'，
// 字段名后必须紧跟一个空格。值到下一个 ';' 或行尾为止，只返回第一个匹配。
//
// out 的容量即 len(out)：最多写入 len(out)-1 字节，然后写入 0 结束符。
// 返回写入的字节数（不含结束符）和查找结果；值比容量长时返回 FoundTruncated。
func Decode(field, line string, out []byte) (int, protocol.Result) {
	start, end, ok := valueSpan(field, line)
	if !ok {
		terminate(out, 0)
		return 0, protocol.NotFound
	}

	n := copyValue(out, line[start:end])
	if n < end-start {
		return n, protocol.FoundTruncated
	}
	return n, protocol.Found
}

// DecodeLegacy 兼容模式：截断时不报告，只返回是否找到
func DecodeLegacy(field, line string, out []byte) (int, bool) {
	n, res := Decode(field, line, out)
	return n, res.OK()
}

// Lookup 返回字段值在 line 中的子串，不分配内存
func Lookup(field, line string) (string, bool) {
	start, end, ok := valueSpan(field, line)
	if !ok {
		return "", false
	}
	return line[start:end], true
}

// valueSpan 返回第一个边界有效匹配的值区间 [start, end)
func valueSpan(field, line string) (int, int, bool) {
	if field == "" {
		return 0, 0, false
	}

	for from := 0; from < len(line); {
		idx := strings.Index(line[from:], field)
		if idx < 0 {
			return 0, 0, false
		}
		pos := from + idx
		after := pos + len(field)

		// 左边界: 行首、空格或 ';'
		// 右边界: 必须是一个空格
		if leftBoundary(line, pos) && after < len(line) && line[after] == protocol.ValueSeparator {
			start := after + 1
			end := strings.IndexByte(line[start:], protocol.FieldSeparator)
			if end < 0 {
				return start, len(line), true
			}
			return start, start + end, true
		}

		// 只前进一个字符，重叠的匹配也要检查
		from = pos + 1
	}
	return 0, 0, false
}

func leftBoundary(line string, pos int) bool {
	if pos == 0 {
		return true
	}
	c := line[pos-1]
	return c == protocol.ValueSeparator || c == protocol.FieldSeparator
}

// copyValue 按 len(out)-1 截断复制并写结束符
func copyValue(out []byte, value string) int {
	if len(out) == 0 {
		return 0
	}
	n := copy(out[:len(out)-1], value)
	terminate(out, n)
	return n
}

func terminate(out []byte, n int) {
	if n < len(out) {
		out[n] = 0
	}
}
