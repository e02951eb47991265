// Package daemonlog builds the *slog.Logger the daemon and its auxiliary
// CLIs share: a debug-level string (spec §6's `-d` flag vocabulary) resolved
// to a slog.Level, and an optional rotating file sink layered under it.
package daemonlog

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
)

// Level resolves spec §6's `-d <0|1|2|3|none|normal|verbose|extreme>`
// vocabulary to a slog.Level. Unrecognized values fall back to Info.
func Level(debug string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(debug)) {
	case "0", "none":
		return slog.LevelWarn
	case "1", "normal", "":
		return slog.LevelInfo
	case "2", "verbose":
		return slog.LevelDebug
	case "3", "extreme":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// New builds the process-wide logger: a rotating file sink via lumberjack
// when cfg.LogFile is set, stderr otherwise, both as slog.JSONHandler so log
// aggregation downstream of syslog/journald (the out-of-scope collaborator,
// spec §2) gets structured records.
func New(cfg *dsconfig.ProcessConfig, debug string) *slog.Logger {
	var sink io.Writer = os.Stderr
	if cfg.LogFile != "" {
		sink = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogBackups,
			MaxAge:     cfg.LogMaxAgeDays,
		}
	}

	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: Level(debug)})
	return slog.New(handler).With("facility", cfg.LogFacility)
}
