// ABOUTME: Tests for command helpers: init output, health URL, and the color log handler
// ABOUTME: The generated config must load cleanly through the config package

package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/afrik-gateway/internal/config"
)

func TestInitConfig_LoadsBack(t *testing.T) {
	dir := t.TempDir()
	answers := ":4000\n\n\n\ndebug\njson\n"

	err := initConfig(bufio.NewReader(strings.NewReader(answers)), io.Discard, dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	t.Cleanup(func() {
		os.Unsetenv("AFRIK_API_KEY")
		os.Unsetenv("AFRIK_JWT_SECRET")
	})
	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://api.afrikmoney.com/api", cfg.Backend.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Len(t, cfg.Auth.APIKey, 32)
	assert.Len(t, cfg.Auth.JWTSecret, 64)
}

func TestInitConfig_KeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	err := initConfig(bufio.NewReader(strings.NewReader("no\n")), io.Discard, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:3001/health", healthURL(":3001"))
	assert.Equal(t, "http://127.0.0.1:3001/health", healthURL("0.0.0.0:3001"))
	assert.Equal(t, "http://10.0.0.5:3001/health", healthURL("10.0.0.5:3001"))
	assert.Equal(t, "http://[::1]:3001/health", healthURL("[::1]:3001"))
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo))
	logger.With("component", "session").WithGroup("req").Info("=== SESSION READY ===", "id", "shop_1")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INF === SESSION READY ===")
	assert.Contains(t, out, " component=session")
	assert.Contains(t, out, " req.id=shop_1")
	assert.NotContains(t, out, "hidden")
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}
