package handler

import "bytes"

// ScanRecords 是 bufio.SplitFunc：以 '\n' 分行，去掉行尾的 '\r'
//
// 只有空白字符的行被跳过。连接关闭时没有换行结尾的最后一段也作为一行返回。
func ScanRecords(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		next := i + 1
		if i < 0 {
			if !atEOF {
				// 需要更多数据
				return advance, nil, nil
			}
			i, next = len(data), len(data)
		}

		record := bytes.TrimRight(data[:i], "\r")
		if len(bytes.TrimSpace(record)) > 0 {
			return advance + next, record, nil
		}

		advance += next
		data = data[next:]
	}
	return advance, nil, nil
}
