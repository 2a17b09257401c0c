package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sandrogeco/centrafari2.1/internal/state"
	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

// 错误原因标签
const (
	ReasonNoFields  = "no_fields"
	ReasonTruncated = "truncated"
	ReasonPublish   = "publish"
	ReasonOversized = "oversized"
)

// OtherField 未知字段共用的标签值
const OtherField = "other"

// FieldLabel 返回字段的指标标签，未知字段统一归为 OtherField，避免标签数量无限增长
func FieldLabel(name string) string {
	if protocol.IsKnownField(name) {
		return name
	}
	return OtherField
}

var (
	// 连接指标
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mw28912_active_connections",
		Help: "当前活跃连接数",
	})

	TotalConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mw28912_total_connections",
		Help: "总连接数",
	})

	RejectedConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mw28912_rejected_connections_total",
		Help: "超过最大连接数被拒绝的连接",
	})

	// 数据指标
	LinesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mw28912_lines_received_total",
		Help: "接收的行总数",
	})

	IdleLines = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mw28912_idle_lines_total",
		Help: "接收的保活行总数",
	})

	BytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mw28912_bytes_received_total",
		Help: "接收的字节总数",
	})

	FieldsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mw28912_fields_extracted_total",
			Help: "提取成功的字段数",
		},
		[]string{"field"},
	)

	// 处理指标
	LinesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mw28912_lines_processed_total",
		Help: "处理成功的行数",
	})

	DataErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mw28912_data_errors_total",
			Help: "数据处理错误数",
		},
		[]string{"reason"},
	)

	// 延迟指标
	ProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mw28912_processing_duration_seconds",
		Help:    "单行处理耗时",
		Buckets: prometheus.DefBuckets,
	})

	// Goroutine指标
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mw28912_goroutines",
		Help: "当前Goroutine数量",
	})

	// 内存指标
	MemoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mw28912_memory_usage_bytes",
		Help: "内存使用量",
	})
)

var registerOnce sync.Once

type Monitor struct {
	log *logrus.Logger
}

// NewMonitor 注册指标，可以多次调用
func NewMonitor(log *logrus.Logger) *Monitor {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ActiveConnections,
			TotalConnections,
			RejectedConnections,
			LinesReceived,
			IdleLines,
			BytesReceived,
			FieldsExtracted,
			LinesProcessed,
			DataErrors,
			ProcessingDuration,
			GoroutineCount,
			MemoryUsage,
		)
	})

	return &Monitor{log: log}
}

// Handler 返回 /metrics、/health 和 /state 端点
func (m *Monitor) Handler(store *state.Store) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// 各设备最新字段值
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body any = store.All()
		if id := r.URL.Query().Get("device"); id != "" {
			snap, ok := store.Snapshot(id)
			if !ok {
				http.Error(w, fmt.Sprintf("未知设备: %s", id), http.StatusNotFound)
				return
			}
			body = snap
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			m.log.Warnf("写入状态响应失败: %v", err)
		}
	})

	return mux
}

// StartMetricsServer 启动Metrics HTTP服务器，ctx 取消时关闭
func (m *Monitor) StartMetricsServer(ctx context.Context, port int, store *state.Store) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(store),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.log.Infof("Metrics服务器启动: %s", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("Metrics服务器错误: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv
}

// StartRuntimeMonitor 启动运行时监控
func (m *Monitor) StartRuntimeMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sampleRuntime()
			}
		}
	}()
}

func (m *Monitor) sampleRuntime() {
	// 更新Goroutine数量
	GoroutineCount.Set(float64(runtime.NumGoroutine()))

	// 更新内存使用
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	MemoryUsage.Set(float64(memStats.Alloc))

	m.log.Debugf("Goroutines: %d, 内存: %.2f MB",
		runtime.NumGoroutine(),
		float64(memStats.Alloc)/1024/1024,
	)
}
