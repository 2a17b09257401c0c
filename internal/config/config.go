package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("配置无效")

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Decoder DecoderConfig `yaml:"decoder"`
	Redis   RedisConfig   `yaml:"redis"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
	Monitor MonitorConfig `yaml:"monitor"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxConnections  int           `yaml:"max_connections"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	BufferSize      int           `yaml:"buffer_size"`
	KeepAlive       time.Duration `yaml:"keep_alive"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DecoderConfig struct {
	// Fields 为空时提取行中所有字段
	Fields      []string `yaml:"fields"`
	MaxValueLen int      `yaml:"max_value_len"`
	// Truncation: strict | silent
	Truncation string `yaml:"truncation"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
	// HistorySize 每个设备保留的原始行数
	HistorySize int64 `yaml:"history_size"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

// LoadConfig 加载配置文件，文件中没写的项使用默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.MaxConnections <= 0 {
		return fmt.Errorf("%w: server.max_connections 必须大于0", ErrInvalidConfig)
	}
	if c.Server.BufferSize <= 0 {
		return fmt.Errorf("%w: server.buffer_size 必须大于0", ErrInvalidConfig)
	}
	if c.Decoder.MaxValueLen <= 0 || c.Decoder.MaxValueLen >= c.Server.BufferSize {
		return fmt.Errorf("%w: decoder.max_value_len 必须在 1 和 buffer_size 之间", ErrInvalidConfig)
	}
	switch c.Decoder.Truncation {
	case "strict", "silent":
	default:
		return fmt.Errorf("%w: decoder.truncation %q", ErrInvalidConfig, c.Decoder.Truncation)
	}
	if c.MQTT.Enabled {
		if c.MQTT.Host == "" || c.MQTT.ClientID == "" {
			return fmt.Errorf("%w: mqtt.host 和 mqtt.client_id 不能为空", ErrInvalidConfig)
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("%w: mqtt.qos %d", ErrInvalidConfig, c.MQTT.QoS)
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr 不能为空", ErrInvalidConfig)
	}
	return nil
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            25800,
			MaxConnections:  16,
			ReadTimeout:     30 * time.Second,
			BufferSize:      1024,
			KeepAlive:       180 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Decoder: DecoderConfig{
			MaxValueLen: 63,
			Truncation:  "strict",
		},
		Redis: RedisConfig{
			Enabled:     false,
			Addr:        "localhost:6379",
			PoolSize:    10,
			Channel:     "mw28912_lines",
			HistorySize: 1000,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Host:        "localhost",
			Port:        1883,
			ClientID:    "mw28912-gateway",
			QoS:         1,
			TopicPrefix: "mw28912",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:     true,
			MetricsPort: 9090,
		},
	}
}
