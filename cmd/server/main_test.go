package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/sandrogeco/centrafari2.1/internal/config"
	"github.com/sandrogeco/centrafari2.1/internal/storage"
)

func TestSetupLogger(t *testing.T) {
	log := setupLogger(config.LogConfig{Level: "debug", Format: "json"})
	require.Equal(t, logrus.DebugLevel, log.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = setupLogger(config.LogConfig{Level: "nonsense", Format: "text"})
	require.Equal(t, logrus.InfoLevel, log.GetLevel())
	require.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	path := filepath.Join(t.TempDir(), "gateway.log")
	log = setupLogger(config.LogConfig{Level: "info", Output: "file", FilePath: path})
	require.FileExists(t, path)
}

func TestSetupPublishersDisabled(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	pub, err := setupPublishers(context.Background(), config.GetDefaultConfig(), log)
	require.NoError(t, err)
	require.IsType(t, storage.Nop{}, pub)
}

func TestSetupPublishersRedisUnreachable(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.GetDefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := setupPublishers(ctx, cfg, log)
	require.Error(t, err)
}
