package volfs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicMetricsCollector(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	v := newTestVolume(t, WithMetricsCollector(metrics))
	require.NoError(t, v.CreateDirectory("docs"))

	require.NoError(t, v.CreateFile("docs", "a", 10, "alice", nil))
	require.Error(t, v.CreateFile("docs", "a", 10, "alice", nil))
	require.NoError(t, v.WriteFile("docs", "a", "alice", []byte("12345")))
	require.Error(t, v.WriteFile("docs", "a", "bob", []byte("xyz")))
	_, err := v.ReadFile("docs", "a", "alice")
	require.NoError(t, err)
	require.NoError(t, v.DeleteFile("docs", "a", "alice"))
	require.NoError(t, v.Save(context.Background(), filepath.Join(t.TempDir(), "s.bin")))

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.CreateCount)
	assert.Equal(t, int64(1), stats.CreateErrors)
	assert.Equal(t, int64(2), stats.WriteCount)
	assert.Equal(t, int64(1), stats.WriteErrors)
	assert.Equal(t, int64(5), stats.WriteBytes)
	assert.Equal(t, int64(1), stats.ReadCount)
	assert.Equal(t, int64(10), stats.ReadBytes)
	assert.Equal(t, int64(1), stats.DeleteCount)
	assert.Equal(t, int64(1), stats.SnapshotCount)
	assert.Zero(t, stats.SnapshotErrors)
}

func TestNoopMetricsCollector(t *testing.T) {
	var mc MetricsCollector = NoopMetricsCollector{}
	mc.RecordCreate(0, nil)
	mc.RecordSnapshot(0, 0, nil)

	v := newTestVolume(t, WithMetricsCollector(nil), WithLogger(nil))
	require.NoError(t, v.CreateDirectory("docs"))
	require.NoError(t, v.CreateFile("docs", "a", 1, "alice", nil))
}

type logLine struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Dir   string `json:"dir"`
	File  string `json:"file"`
	Actor string `json:"actor"`
	Error string `json:"error"`
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	v := newTestVolume(t, WithLogger(logger))

	require.NoError(t, v.CreateDirectory("docs"))
	require.NoError(t, v.CreateFile("docs", "a", 10, "alice", nil))
	_, err := v.ReadFile("docs", "a", "mallory")
	require.ErrorIs(t, err, ErrAccessDenied)
	require.ErrorIs(t, v.DeleteFile("docs", "missing", "alice"), ErrNotFound)

	var lines []logLine
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var l logLine
		require.NoError(t, json.Unmarshal([]byte(raw), &l))
		lines = append(lines, l)
	}
	require.Len(t, lines, 3)

	assert.Equal(t, logLine{Level: "DEBUG", Msg: "create completed", Dir: "docs", File: "a"}, lines[0])

	assert.Equal(t, "WARN", lines[1].Level)
	assert.Equal(t, "read failed", lines[1].Msg)
	assert.Equal(t, "mallory", lines[1].Actor)
	assert.Contains(t, lines[1].Error, "access denied")

	assert.Equal(t, "DEBUG", lines[2].Level)
	assert.Equal(t, "delete failed", lines[2].Msg)
}

func TestLogger_Snapshot(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, nil))
	ctx := context.Background()

	logger.LogSnapshot(ctx, "state.bin", nil)
	logger.LogRestore(ctx, "state.bin", 3, nil)
	logger.LogRestore(ctx, "state.bin", 0, ErrPersistence)

	out := buf.String()
	assert.Contains(t, out, "snapshot saved")
	assert.Contains(t, out, "files=3")
	assert.Contains(t, out, "level=ERROR")
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.WithDirectory("docs").WithActor("alice").LogWrite(context.Background(), "docs", "a", "alice", 1, nil)
}
