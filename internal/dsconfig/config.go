// Package dsconfig loads and validates the two INI configuration files the
// daemon is driven by: the per-dataset file (plus an optional template
// file) and the process-wide file. Each dataset section is resolved,
// at load time, against its template and the DEFAULT section into one
// fully-typed, validated Config — unknown keys are load-time errors, not
// silently ignored.
package dsconfig

import (
	"fmt"
	"time"

	"github.com/sherbacov/zsnapd/internal/schema"
	"github.com/sherbacov/zsnapd/internal/zsnapderrors"
)

// TimeSpec is a dataset's due-trigger: either a list of clock times, or the
// sentinel "fire on .trigger file presence".
type TimeSpec struct {
	Trigger bool
	Clocks  []ClockTime
}

// ClockTime is an HH:MM wall-clock value, minute resolution.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Config is one dataset's fully-resolved, validated configuration — the
// merge of its section, its template (if any), and DEFAULT.
type Config struct {
	Name string // the dataset name this section is keyed by

	Mountpoint string // empty for zvols ("None" in the INI)
	Time       TimeSpec

	Snapshot bool
	Schema   schema.Schema

	LocalSchema    schema.Schema
	HasLocalSchema bool

	ReplicateTarget string // push: non-empty
	ReplicateSource string // pull: non-empty

	EndpointHost    string
	EndpointPort    int
	EndpointCommand string // SSH command template, {host}/{port} placeholders

	Compression string // external tool name, empty disables

	PreExec           string
	PostExec          string
	ReplicatePostExec string

	CleanAll      bool
	LocalCleanAll bool

	AllSnapshots bool
	LogCommands  bool

	Template string // name of the [template] section this was merged from, if any
}

// defaultEndpointPort is used whenever replicate_endpoint_port is unset,
// whether or not a replication direction and host are configured.
const defaultEndpointPort = 22

// ApplyDefaults fills in a Config's zero-value fields with the daemon's
// documented defaults, mirroring the "typed, validated snapshot" resolution
// model: defaults are filled once, at load time, not at every access.
func (c *Config) ApplyDefaults() {
	if c.EndpointPort == 0 {
		c.EndpointPort = defaultEndpointPort
	}
	// clean_all / local_clean_all default to false for both push and pull —
	// the safer default per the resolved open question (see DESIGN.md).
}

// IsPush reports whether this dataset replicates outward to a remote target.
func (c *Config) IsPush() bool {
	return c.ReplicateTarget != ""
}

// IsPull reports whether this dataset receives from a remote source.
func (c *Config) IsPull() bool {
	return c.ReplicateSource != ""
}

// IsLocalEndpoint reports whether the replication endpoint is the local
// host (no host configured — commands run directly, no SSH, no probe).
func (c *Config) IsLocalEndpoint() bool {
	return c.EndpointHost == ""
}

// Validate checks the invariants spec.md §3 places on a merged dataset
// configuration. It does not apply defaults; call ApplyDefaults first.
func (c *Config) Validate() error {
	if c.ReplicateTarget != "" && c.ReplicateSource != "" {
		return zsnapderrors.New(zsnapderrors.KindConfigError, c.Name, "validate",
			fmt.Errorf("replicate_target and replicate_source are mutually exclusive"))
	}
	if !c.Time.Trigger && len(c.Time.Clocks) == 0 {
		return zsnapderrors.New(zsnapderrors.KindConfigError, c.Name, "validate",
			fmt.Errorf("time must be either 'trigger' or a non-empty list of HH:MM values"))
	}
	if c.Time.Trigger && c.Mountpoint == "" {
		return zsnapderrors.New(zsnapderrors.KindConfigError, c.Name, "validate",
			fmt.Errorf("time=trigger requires a mountpoint to look for .trigger in"))
	}
	if (c.IsPush() || c.IsPull()) && !c.IsLocalEndpoint() && c.EndpointCommand == "" {
		return zsnapderrors.New(zsnapderrors.KindConfigError, c.Name, "validate",
			fmt.Errorf("replicate_endpoint_command is required for a non-local endpoint"))
	}
	return nil
}

// ProcessConfig is the daemon-level configuration read from process.conf's
// [zsnapd] section.
type ProcessConfig struct {
	SleepTime         time.Duration
	DebugSleepTime    time.Duration
	DatasetConfigFile string
	RunAsUser         string

	LogFacility   string // syslog facility, e.g. "DAEMON"
	LogLevel      string
	LogFile       string // rotating file sink path, empty disables
	LogMaxSizeMB  int
	LogBackups    int
	LogMaxAgeDays int

	StatusAPIHost   string   // empty disables the read-only HTTP introspection surface
	StatusAPIPort   int
	StatusAPITokens []string
}

// ApplyDefaults fills process-level defaults.
func (p *ProcessConfig) ApplyDefaults() {
	if p.SleepTime == 0 {
		p.SleepTime = time.Minute
	}
	if p.DebugSleepTime == 0 {
		p.DebugSleepTime = 10 * time.Second
	}
	if p.DatasetConfigFile == "" {
		p.DatasetConfigFile = "/etc/zsnapd/dataset.conf"
	}
	if p.LogFacility == "" {
		p.LogFacility = "DAEMON"
	}
	if p.LogLevel == "" {
		p.LogLevel = "normal"
	}
	if p.LogMaxSizeMB == 0 {
		p.LogMaxSizeMB = 100
	}
	if p.StatusAPIHost != "" && p.StatusAPIPort == 0 {
		p.StatusAPIPort = 8910
	}
	if p.LogBackups == 0 {
		p.LogBackups = 5
	}
}
