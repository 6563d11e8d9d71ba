// Package logger builds the process-wide slog.Logger from configuration,
// including the optional Parquet telemetry tee.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vectorfold/embedgate/pkg/config"
	"github.com/vectorfold/embedgate/pkg/telemetry"
)

// New builds a logger from cfg, writing to w. When a telemetry Parquet path
// is configured, warning-and-above records are additionally captured there;
// the returned flush func drains any buffered telemetry and must be called
// before process exit.
func New(cfg *config.Config, w io.Writer) (*slog.Logger, func(), error) {
	if w == nil {
		w = os.Stderr
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Log.Level)}
	if strings.EqualFold(cfg.Log.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	flush := func() {}
	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		handler = parquetHandler
		flush = func() { _ = parquetHandler.Flush() }
	}

	return slog.New(handler), flush, nil
}

// ParseLevel maps a config level string onto a slog.Level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
