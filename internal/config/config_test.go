package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 25800, cfg.Server.Port)
	require.Equal(t, "strict", cfg.Decoder.Truncation)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 26000
  read_timeout: 2s
decoder:
  fields: [x, y, lux]
  truncation: silent
mqtt:
  enabled: true
  topic_prefix: bench
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 26000, cfg.Server.Port)
	require.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, []string{"x", "y", "lux"}, cfg.Decoder.Fields)
	require.Equal(t, "silent", cfg.Decoder.Truncation)
	require.True(t, cfg.MQTT.Enabled)
	require.Equal(t, "bench", cfg.MQTT.TopicPrefix)
	require.Equal(t, "mw28912-gateway", cfg.MQTT.ClientID)

	// 未设置的项保持默认值
	require.Equal(t, 1024, cfg.Server.BufferSize)
	require.Equal(t, 63, cfg.Decoder.MaxValueLen)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "server: [1, 2"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "decoder:\n  truncation: maybe\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"max connections", func(c *Config) { c.Server.MaxConnections = 0 }},
		{"buffer size", func(c *Config) { c.Server.BufferSize = 0 }},
		{"value longer than buffer", func(c *Config) { c.Decoder.MaxValueLen = c.Server.BufferSize }},
		{"zero value length", func(c *Config) { c.Decoder.MaxValueLen = 0 }},
		{"mqtt host", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Host = "" }},
		{"mqtt qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }},
		{"redis addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, GetDefaultConfig(), cfg)
}
