package dsconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/sherbacov/zsnapd/internal/zsnapderrors"
)

// processKnownKeys is the recognized [zsnapd]-section key set (spec §6).
// daemon_canary and debug_mark are accepted but carry no behavior in this
// implementation — they're inherited config-format keys from the daemon's
// lineage, not used by anything spec.md describes.
var processKnownKeys = map[string]bool{
	"daemon_canary":       true,
	"debug_mark":          true,
	"sleep_time":          true,
	"debug_sleep_time":    true,
	"dataset_config_file": true,
	"run_as_user":         true,
	"log_facility":        true,
	"log_level":           true,
	"log_file":            true,
	"log_max_size_mb":     true,
	"log_backups":         true,
	"log_max_age_days":    true,
	"status_api_host":     true,
	"status_api_port":     true,
	"status_api_tokens":   true,
}

// LoadProcessConfig parses the [zsnapd] section (merged over [DEFAULT]) of
// the process-wide INI file at path into a validated, defaulted
// ProcessConfig.
func LoadProcessConfig(path string) (*ProcessConfig, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load-process", fmt.Errorf("reading %s: %w", path, err))
	}

	merged := make(map[string]string)
	for _, key := range file.Section(ini.DefaultSection).Keys() {
		merged[key.Name()] = key.Value()
	}
	sec, err := file.GetSection("zsnapd")
	if err == nil {
		for _, key := range sec.Keys() {
			if !processKnownKeys[key.Name()] {
				return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load-process", fmt.Errorf("unknown option %q", key.Name()))
			}
			merged[key.Name()] = key.Value()
		}
	}

	cfg := &ProcessConfig{
		DatasetConfigFile: merged["dataset_config_file"],
		RunAsUser:         merged["run_as_user"],
		LogFacility:       merged["log_facility"],
		LogLevel:          merged["log_level"],
		LogFile:           merged["log_file"],
		StatusAPIHost:     merged["status_api_host"],
	}

	if s := merged["status_api_tokens"]; s != "" {
		cfg.StatusAPITokens = strings.Split(s, ",")
		for i := range cfg.StatusAPITokens {
			cfg.StatusAPITokens[i] = strings.TrimSpace(cfg.StatusAPITokens[i])
		}
	}

	if s := merged["sleep_time"]; s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load-process", fmt.Errorf("sleep_time: %w", err))
		}
		cfg.SleepTime = d
	}
	if s := merged["debug_sleep_time"]; s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load-process", fmt.Errorf("debug_sleep_time: %w", err))
		}
		cfg.DebugSleepTime = d
	}
	if s := merged["log_max_size_mb"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load-process", fmt.Errorf("log_max_size_mb: %w", err))
		}
		cfg.LogMaxSizeMB = n
	}
	if s := merged["log_backups"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load-process", fmt.Errorf("log_backups: %w", err))
		}
		cfg.LogBackups = n
	}
	if s := merged["log_max_age_days"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load-process", fmt.Errorf("log_max_age_days: %w", err))
		}
		cfg.LogMaxAgeDays = n
	}
	if s := merged["status_api_port"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load-process", fmt.Errorf("status_api_port: %w", err))
		}
		cfg.StatusAPIPort = n
	}

	cfg.ApplyDefaults()
	return cfg, nil
}
