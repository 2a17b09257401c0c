package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sandrogeco/centrafari2.1/internal/config"
	"github.com/sandrogeco/centrafari2.1/internal/handler"
	"github.com/sandrogeco/centrafari2.1/internal/monitor"
	"github.com/sandrogeco/centrafari2.1/internal/parser"
	"github.com/sandrogeco/centrafari2.1/internal/state"
	"github.com/sandrogeco/centrafari2.1/internal/storage"
)

type TCPServer struct {
	config    config.ServerConfig
	parser    *parser.Parser
	store     *state.Store
	publisher storage.Publisher
	log       *logrus.Logger
	limiter   chan struct{}
	wg        sync.WaitGroup
	ready     chan struct{}

	mu       sync.Mutex
	listener net.Listener
}

func NewTCPServer(
	cfg config.ServerConfig,
	log *logrus.Logger,
	parser *parser.Parser,
	store *state.Store,
	publisher storage.Publisher,
) *TCPServer {
	return &TCPServer{
		config:    cfg,
		parser:    parser,
		store:     store,
		publisher: publisher,
		log:       log,
		limiter:   make(chan struct{}, cfg.MaxConnections),
		ready:     make(chan struct{}),
	}
}

// Start 监听并接受连接，ctx 取消后停止接受新连接并等待现有连接结束
func (s *TCPServer) Start(ctx context.Context) error {
	// 监听TCP端口
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	lc := net.ListenConfig{
		KeepAlive: s.config.KeepAlive,
	}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.log.Infof("服务器启动成功: %s (最大连接: %d)", listener.Addr(), s.config.MaxConnections)

	go func() {
		<-ctx.Done()
		s.log.Info("停止接受新连接")
		listener.Close()
	}()

	// 接受连接
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Errorf("接受连接错误: %v", err)
			continue
		}

		// 连接数限制
		select {
		case s.limiter <- struct{}{}:
			s.wg.Add(1)
			go s.handleConnection(ctx, conn)
		default:
			monitor.RejectedConnections.Inc()
			s.log.Warnf("达到最大连接数，拒绝连接: %s", conn.RemoteAddr())
			conn.Close()
		}
	}

	s.waitConnections()
	return nil
}

// Addr 返回实际监听地址，Start 之前阻塞
func (s *TCPServer) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr(), nil
}

func (s *TCPServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		<-s.limiter
		s.wg.Done()
	}()

	h := handler.NewConnectionHandler(
		conn,
		s.parser,
		s.store,
		s.publisher,
		s.log,
		handler.Options{
			BufferSize:  s.config.BufferSize,
			ReadTimeout: s.config.ReadTimeout,
		},
	)

	h.Handle(ctx)
}

// waitConnections 等待现有连接处理完成，最多 ShutdownTimeout
func (s *TCPServer) waitConnections() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
		s.log.Info("所有连接已关闭")
	case <-time.After(timeout):
		s.log.Warn("关闭超时，强制退出")
	}
}
