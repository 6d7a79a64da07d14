// ABOUTME: Tests for credential purge and the slog bridge
// ABOUTME: Purge must tolerate missing files and remove WAL companions

package whatsapp

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialer_Purge(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDialer(dir, slog.Default())
	require.NoError(t, err)

	for _, name := range []string{"instance-shop_1.db", "instance-shop_1.db-wal", "instance-shop_1.db-shm", "instance-other.db"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	require.NoError(t, d.Purge("shop_1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "instance-other.db", entries[0].Name())

	assert.NoError(t, d.Purge("shop_1"), "purging twice is not an error")
}

func TestNewDialer_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sessions")
	_, err := NewDialer(dir, slog.Default())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l := newLogger(base).Sub("socket")
	l.Infof("connected to %s", "web.whatsapp.com")
	l.Debugf("frame %d", 7)

	out := buf.String()
	assert.Contains(t, out, "connected to web.whatsapp.com")
	assert.Contains(t, out, "module=socket")
	assert.NotContains(t, out, "frame 7")
}
