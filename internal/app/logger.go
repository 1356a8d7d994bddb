package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig 是日志的最小配置。
type LogConfig struct {
	Level  string // debug|info|warn|error，默认 warn
	Format string // text|json，默认 text
}

// NewLogger 按配置创建 *slog.Logger 并设为 slog 默认 logger。
// 输出固定为 stderr：stdout 保留给进度输出或 JSON 报告。
func NewLogger(cfg LogConfig) *slog.Logger {
	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
