package telemetry

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*ParquetHandler, string) {
	t.Helper()
	dir := t.TempDir()
	next := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	h, err := NewParquetHandler(next, dir)
	require.NoError(t, err)
	return h, dir
}

func parquetFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	return files
}

func TestParquetHandler_RecordsWarnings(t *testing.T) {
	h, dir := newTestHandler(t)
	logger := slog.New(h)

	logger.Warn("embedding backend throttled", "provider", "openai", "model", "text-embedding-3-small")
	logger.Error("all embedding providers failed", "provider", "openai")
	require.NoError(t, h.Flush())

	files := parquetFiles(t, dir)
	require.Len(t, files, 1)

	rows, err := parquet.ReadFile[EventRecord](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "embedding backend throttled", rows[0].Message)
	assert.Equal(t, "WARN", rows[0].Level)
	assert.Equal(t, "openai", rows[0].Provider)
	assert.Equal(t, "text-embedding-3-small", rows[0].Model)
	assert.NotEmpty(t, rows[0].ID)
	assert.Contains(t, rows[0].Attributes, "provider")

	assert.Equal(t, "ERROR", rows[1].Level)
}

func TestParquetHandler_IgnoresInfo(t *testing.T) {
	h, dir := newTestHandler(t)
	logger := slog.New(h)

	logger.Info("rate limit delay changed", "provider", "openai")
	logger.Debug("applying rate limit delay")
	require.NoError(t, h.Flush())

	assert.Empty(t, parquetFiles(t, dir), "info and debug records stay out of the event trail")
}

func TestParquetHandler_FlushOnBatchSize(t *testing.T) {
	h, dir := newTestHandler(t)
	h.batchSize = 3
	logger := slog.New(h)

	logger.Warn("event one")
	logger.Warn("event two")
	assert.Empty(t, parquetFiles(t, dir), "batch not yet full")

	logger.Warn("event three")
	files := parquetFiles(t, dir)
	require.Len(t, files, 1)

	rows, err := parquet.ReadFile[EventRecord](files[0])
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestParquetHandler_FlushEmptyBuffer(t *testing.T) {
	h, dir := newTestHandler(t)
	require.NoError(t, h.Flush())
	assert.Empty(t, parquetFiles(t, dir))
}
