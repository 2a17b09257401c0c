package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sandrogeco/centrafari2.1/internal/config"
	"github.com/sandrogeco/centrafari2.1/internal/monitor"
	"github.com/sandrogeco/centrafari2.1/internal/parser"
	"github.com/sandrogeco/centrafari2.1/internal/server"
	"github.com/sandrogeco/centrafari2.1/internal/state"
	"github.com/sandrogeco/centrafari2.1/internal/storage"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	// 命令行参数
	configFile := flag.String("config", "configs/config.yaml", "配置文件路径")
	showVersion := flag.Bool("version", false, "显示版本信息")
	flag.Parse()

	// 显示版本
	if *showVersion {
		fmt.Printf("MW28912 Gateway v%s (Build: %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// 加载配置
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		cfg = config.GetDefaultConfig()
		fmt.Println("使用默认配置")
	}

	// 初始化日志
	log := setupLogger(cfg.Log)
	log.Infof("MW28912 Gateway v%s 启动中...", Version)
	log.Infof("配置文件: %s", *configFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalf("服务器运行失败: %v", err)
	}
	log.Info("服务器已关闭")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	publisher, err := setupPublishers(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		// 关闭存储连接
		if err := publisher.Close(); err != nil {
			log.Errorf("关闭存储连接失败: %v", err)
		}
	}()

	store := state.NewStore()
	p := parser.NewParser(parser.Options{
		Fields:      cfg.Decoder.Fields,
		MaxValueLen: cfg.Decoder.MaxValueLen,
		Truncation:  parser.TruncationMode(cfg.Decoder.Truncation),
	})

	// 启动监控
	mon := monitor.NewMonitor(log)
	if cfg.Monitor.Enabled {
		mon.StartMetricsServer(ctx, cfg.Monitor.MetricsPort, store)
		mon.StartRuntimeMonitor(ctx, 10*time.Second)
	}

	srv := server.NewTCPServer(cfg.Server, log, p, store, publisher)
	return srv.Start(ctx)
}

func setupPublishers(ctx context.Context, cfg *config.Config, log *logrus.Logger) (storage.Publisher, error) {
	var sinks storage.Multi

	if cfg.Redis.Enabled {
		mq, err := storage.NewMessageQueue(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mq)
	}

	if cfg.MQTT.Enabled {
		mp, err := storage.NewMQTTPublisher(cfg.MQTT, log)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, mp)
	}

	if len(sinks) == 0 {
		log.Info("未启用下游存储，只保存内存状态")
		return storage.Nop{}, nil
	}
	return sinks, nil
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	// 设置日志级别
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// 设置日志格式
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	// 设置输出
	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("打开日志文件失败: %v, 使用标准输出", err)
		}
	}

	return log
}
