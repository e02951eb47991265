package daemonlog

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
)

func TestLevelResolvesDocumentedVocabulary(t *testing.T) {
	cases := map[string]slog.Level{
		"0":       slog.LevelWarn,
		"none":    slog.LevelWarn,
		"1":       slog.LevelInfo,
		"normal":  slog.LevelInfo,
		"":        slog.LevelInfo,
		"2":       slog.LevelDebug,
		"verbose": slog.LevelDebug,
		"3":       slog.LevelDebug,
		"extreme": slog.LevelDebug,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, Level(input), "input %q", input)
	}
}

func TestNewBuildsLoggerWithoutPanicking(t *testing.T) {
	cfg := &dsconfig.ProcessConfig{LogFacility: "DAEMON"}
	logger := New(cfg, "normal")
	assert.NotNil(t, logger)
}

func TestNewUsesRotatingFileSinkWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	cfg := &dsconfig.ProcessConfig{
		LogFacility:  "DAEMON",
		LogFile:      dir + "/zsnapd.log",
		LogMaxSizeMB: 10,
	}
	logger := New(cfg, "verbose")
	logger.Info("hello")
}
