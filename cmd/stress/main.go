package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sandrogeco/centrafari2.1/internal/testutil"
	"github.com/sandrogeco/centrafari2.1/pkg/protocol"
)

// 统计指标
type Stats struct {
	TotalSent      int64 // 总发送行数
	TotalIdle      int64 // 保活行数
	TotalFailed    int64 // 总失败数
	TotalConnected int64 // 总连接数
	ActiveDevices  int64 // 活跃设备数
	TotalBytes     int64 // 总字节数
}

// Device 模拟一台 MW28912
type Device struct {
	ID           int
	ServerAddr   string
	SendInterval time.Duration
	IdleRatio    int
	Stats        *Stats
	Log          *logrus.Logger
	rng          *rand.Rand
}

func NewDevice(id int, serverAddr string, interval time.Duration, idleRatio int, stats *Stats, log *logrus.Logger) *Device {
	return &Device{
		ID:           id,
		ServerAddr:   serverAddr,
		SendInterval: interval,
		IdleRatio:    idleRatio,
		Stats:        stats,
		Log:          log,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
	}
}

// Run 运行设备模拟器，ctx 取消时停止
func (d *Device) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	// 连接服务器
	conn, err := net.DialTimeout("tcp", d.ServerAddr, 5*time.Second)
	if err != nil {
		d.Log.Errorf("设备 %d 连接失败: %v", d.ID, err)
		atomic.AddInt64(&d.Stats.TotalFailed, 1)
		return
	}
	defer conn.Close()

	atomic.AddInt64(&d.Stats.TotalConnected, 1)
	atomic.AddInt64(&d.Stats.ActiveDevices, 1)
	defer atomic.AddInt64(&d.Stats.ActiveDevices, -1)

	d.Log.Debugf("设备 %d 已连接", d.ID)

	ticker := time.NewTicker(d.SendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Log.Debugf("设备 %d 停止", d.ID)
			return

		case <-ticker.C:
			line, idle := d.nextLine()

			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			n, err := fmt.Fprintf(conn, "%s\n", line)
			if err != nil {
				d.Log.Errorf("设备 %d 发送失败: %v", d.ID, err)
				atomic.AddInt64(&d.Stats.TotalFailed, 1)
				return
			}

			if idle {
				atomic.AddInt64(&d.Stats.TotalIdle, 1)
			}
			atomic.AddInt64(&d.Stats.TotalSent, 1)
			atomic.AddInt64(&d.Stats.TotalBytes, int64(n))
		}
	}
}

// nextLine 生成下一行：按 IdleRatio 百分比发送保活行，其余为随机遥测
func (d *Device) nextLine() (string, bool) {
	if d.rng.Intn(100) < d.IdleRatio {
		return protocol.IdleLine, true
	}
	return testutil.RandomTelemetry(d.rng), false
}

// StressTest 压力测试管理器
type StressTest struct {
	ServerAddr   string
	NumDevices   int
	SendInterval time.Duration
	Duration     time.Duration
	IdleRatio    int
	Stats        *Stats
	Log          *logrus.Logger
}

func NewStressTest(serverAddr string, numDevices int, sendInterval, duration time.Duration, idleRatio int) *StressTest {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &StressTest{
		ServerAddr:   serverAddr,
		NumDevices:   numDevices,
		SendInterval: sendInterval,
		Duration:     duration,
		IdleRatio:    idleRatio,
		Stats:        &Stats{},
		Log:          log,
	}
}

// Run 运行压力测试
func (st *StressTest) Run(ctx context.Context) {
	st.Log.Infof("========================================")
	st.Log.Infof("压力测试开始")
	st.Log.Infof("========================================")
	st.Log.Infof("服务器地址: %s", st.ServerAddr)
	st.Log.Infof("设备数量:   %d", st.NumDevices)
	st.Log.Infof("发送间隔:   %v", st.SendInterval)
	st.Log.Infof("测试时长:   %v", st.Duration)
	st.Log.Infof("预计 QPS:   %.0f", float64(st.NumDevices)/st.SendInterval.Seconds())
	st.Log.Infof("========================================")

	if st.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Duration)
		defer cancel()
	}

	// 启动统计监控
	go st.monitorStats(ctx)

	// 创建设备
	var wg sync.WaitGroup
	startTime := time.Now()

	for i := 0; i < st.NumDevices; i++ {
		device := NewDevice(i+1, st.ServerAddr, st.SendInterval, st.IdleRatio, st.Stats, st.Log)

		wg.Add(1)
		go device.Run(ctx, &wg)

		// 分批启动，避免瞬间连接过多
		if (i+1)%100 == 0 {
			time.Sleep(10 * time.Millisecond)
			st.Log.Infof("已启动 %d/%d 设备...", i+1, st.NumDevices)
		}
	}

	st.Log.Infof("所有设备启动完成，用时: %v", time.Since(startTime))

	// 等待所有设备停止
	wg.Wait()

	// 打印最终统计
	st.printFinalStats()
}

// monitorStats 监控统计信息
func (st *StressTest) monitorStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	lastSent := int64(0)
	lastBytes := int64(0)
	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			duration := now.Sub(lastTime).Seconds()

			currentSent := atomic.LoadInt64(&st.Stats.TotalSent)
			currentBytes := atomic.LoadInt64(&st.Stats.TotalBytes)
			activeDev := atomic.LoadInt64(&st.Stats.ActiveDevices)
			totalConn := atomic.LoadInt64(&st.Stats.TotalConnected)
			totalFailed := atomic.LoadInt64(&st.Stats.TotalFailed)

			// 计算速率
			qps := float64(currentSent-lastSent) / duration
			bps := float64(currentBytes-lastBytes) / duration / 1024 // KB/s

			st.Log.Infof("活跃设备: %d | 总连接: %d | 失败: %d | 已发送: %d | QPS: %.0f | 带宽: %.2f KB/s",
				activeDev, totalConn, totalFailed, currentSent, qps, bps)

			lastSent = currentSent
			lastBytes = currentBytes
			lastTime = now
		}
	}
}

// printFinalStats 打印最终统计
func (st *StressTest) printFinalStats() {
	sent := atomic.LoadInt64(&st.Stats.TotalSent)
	failed := atomic.LoadInt64(&st.Stats.TotalFailed)

	st.Log.Infof("========================================")
	st.Log.Infof("压力测试完成")
	st.Log.Infof("========================================")
	st.Log.Infof("总连接数:   %d", atomic.LoadInt64(&st.Stats.TotalConnected))
	st.Log.Infof("总发送数:   %d (保活 %d)", sent, atomic.LoadInt64(&st.Stats.TotalIdle))
	st.Log.Infof("总失败数:   %d", failed)
	st.Log.Infof("总字节数:   %.2f MB", float64(atomic.LoadInt64(&st.Stats.TotalBytes))/1024/1024)

	if sent+failed > 0 {
		st.Log.Infof("成功率:     %.2f%%", float64(sent)/float64(sent+failed)*100)
	}
	st.Log.Infof("========================================")
}

// validateFlags 检查命令行参数，间隔为 0 时 time.NewTicker 会 panic
func validateFlags(devices int, interval time.Duration, idleRatio int) error {
	if devices <= 0 {
		return fmt.Errorf("-devices 必须大于0: %d", devices)
	}
	if interval <= 0 {
		return fmt.Errorf("-interval 必须大于0: %v", interval)
	}
	if idleRatio < 0 || idleRatio > 100 {
		return fmt.Errorf("-idle 必须在 0 到 100 之间: %d", idleRatio)
	}
	return nil
}

func main() {
	// 命令行参数
	serverAddr := flag.String("server", "localhost:25800", "服务器地址")
	numDevices := flag.Int("devices", 10, "设备数量")
	sendInterval := flag.Duration("interval", 100*time.Millisecond, "发送间隔")
	duration := flag.Duration("duration", 60*time.Second, "测试时长(0表示直到 Ctrl+C)")
	idleRatio := flag.Int("idle", 5, "保活行百分比")
	debug := flag.Bool("debug", false, "调试模式")
	flag.Parse()

	if err := validateFlags(*numDevices, *sendInterval, *idleRatio); err != nil {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 创建压力测试
	st := NewStressTest(*serverAddr, *numDevices, *sendInterval, *duration, *idleRatio)

	if *debug {
		st.Log.SetLevel(logrus.DebugLevel)
	}

	// 运行测试
	st.Run(ctx)
}
