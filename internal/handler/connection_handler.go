package handler

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sandrogeco/centrafari2.1/internal/monitor"
	"github.com/sandrogeco/centrafari2.1/internal/parser"
	"github.com/sandrogeco/centrafari2.1/internal/state"
	"github.com/sandrogeco/centrafari2.1/internal/storage"
)

type ConnectionHandler struct {
	conn        net.Conn
	deviceID    string
	parser      *parser.Parser
	store       *state.Store
	publisher   storage.Publisher
	log         *logrus.Entry
	bufferSize  int
	readTimeout time.Duration
}

type Options struct {
	BufferSize  int
	ReadTimeout time.Duration
}

func NewConnectionHandler(
	conn net.Conn,
	parser *parser.Parser,
	store *state.Store,
	publisher storage.Publisher,
	log *logrus.Logger,
	opts Options,
) *ConnectionHandler {
	deviceID := DeviceID(conn.RemoteAddr())

	return &ConnectionHandler{
		conn:        conn,
		deviceID:    deviceID,
		parser:      parser,
		store:       store,
		publisher:   publisher,
		log:         log.WithField("device", deviceID),
		bufferSize:  opts.BufferSize,
		readTimeout: opts.ReadTimeout,
	}
}

// Handle 处理连接，直到对端关闭、读超时或 ctx 取消
func (h *ConnectionHandler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		h.conn.Close()
		monitor.ActiveConnections.Dec()
		h.log.Info("连接关闭")
	}()

	monitor.ActiveConnections.Inc()
	monitor.TotalConnections.Inc()
	h.log.Info("新连接")

	// ctx 取消时关闭连接，解除阻塞的读
	go func() {
		<-ctx.Done()
		h.conn.Close()
	}()

	scanner := bufio.NewScanner(&countingReader{r: h.conn})
	scanner.Buffer(make([]byte, 0, h.bufferSize), h.bufferSize)
	scanner.Split(ScanRecords)

	for {
		if h.readTimeout > 0 {
			h.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		}
		if !scanner.Scan() {
			break
		}
		h.processLine(ctx, scanner.Text())
	}

	err := scanner.Err()
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, bufio.ErrTooLong):
		monitor.DataErrors.WithLabelValues(monitor.ReasonOversized).Inc()
		h.log.Errorf("行超过 %d 字节，断开连接", h.bufferSize)
	case isTimeout(err):
		h.log.Debugf("读取超时: %v", err)
	default:
		h.log.Debugf("连接断开: %v", err)
	}
}

// processLine 处理一行数据
func (h *ConnectionHandler) processLine(ctx context.Context, line string) {
	startTime := time.Now()
	monitor.LinesReceived.Inc()

	result := h.parser.Parse(h.deviceID, line)

	if !result.Success {
		switch {
		case errors.Is(result.Error, parser.ErrIdle):
			monitor.IdleLines.Inc()
		case errors.Is(result.Error, parser.ErrTruncated):
			monitor.DataErrors.WithLabelValues(monitor.ReasonTruncated).Inc()
			h.log.Warnf("解析失败: %v, 数据: %q", result.Error, line)
		default:
			monitor.DataErrors.WithLabelValues(monitor.ReasonNoFields).Inc()
			h.log.Warnf("解析失败: %v, 数据: %q", result.Error, line)
		}
		return
	}

	for name := range result.Data.Values {
		monitor.FieldsExtracted.WithLabelValues(monitor.FieldLabel(name)).Inc()
	}

	h.store.Apply(result.Data)

	// 发送到下游
	if err := h.publisher.Publish(ctx, result.Data); err != nil {
		monitor.DataErrors.WithLabelValues(monitor.ReasonPublish).Inc()
		h.log.Errorf("发布消息失败: %v", err)
		return
	}

	monitor.LinesProcessed.Inc()

	// 记录处理时间
	duration := time.Since(startTime).Seconds()
	monitor.ProcessingDuration.Observe(duration)

	h.log.Debugf("数据处理成功: 字段=%d, 缺失=%v, 耗时=%.3fms",
		len(result.Data.Values),
		result.Data.Missing,
		duration*1000,
	)
}

// DeviceID 用对端主机作为设备标识，重连后源端口变化不影响设备状态
func DeviceID(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil || host == "" {
		return addr.String()
	}
	return host
}

// countingReader 统计接收字节数
type countingReader struct {
	r io.Reader
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		monitor.BytesReceived.Add(float64(n))
	}
	return n, err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
