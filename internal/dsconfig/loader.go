package dsconfig

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/sherbacov/zsnapd/internal/schema"
	"github.com/sherbacov/zsnapd/internal/zsnapderrors"
)

// knownKeys is the full set of recognized dataset-section keys (spec §3).
// Any other key in a section is a ConfigError — unknown keys are errors,
// not silent ignores, per SPEC_FULL.md's "typed, validated snapshot" rule.
var knownKeys = map[string]bool{
	"mountpoint":                 true,
	"time":                       true,
	"snapshot":                   true,
	"schema":                     true,
	"local_schema":               true,
	"replicate_target":           true,
	"replicate_source":           true,
	"replicate_endpoint_host":    true,
	"replicate_endpoint_port":    true,
	"replicate_endpoint_command": true,
	"replicate_endpoint":         true, // deprecated, rejected explicitly below
	"compression":                true,
	"preexec":                    true,
	"postexec":                   true,
	"replicate_postexec":         true,
	"clean_all":                  true,
	"local_clean_all":            true,
	"all_snapshots":              true,
	"log_commands":               true,
	"template":                   true,
}

// LoadDatasets parses the dataset file at path, an optional template file at
// templatePath (pass "" if none configured), and returns one validated
// Config per non-DEFAULT section, in file order.
func LoadDatasets(path, templatePath string) ([]*Config, error) {
	datasetFile, err := ini.Load(path)
	if err != nil {
		return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load", fmt.Errorf("reading %s: %w", path, err))
	}

	var templateFile *ini.File
	if templatePath != "" {
		templateFile, err = ini.Load(templatePath)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, "", "load", fmt.Errorf("reading %s: %w", templatePath, err))
		}
	}

	defaultSection := datasetFile.Section(ini.DefaultSection)

	var configs []*Config
	for _, sec := range datasetFile.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}

		merged, err := mergeSection(sec, defaultSection, templateFile)
		if err != nil {
			return nil, err
		}

		cfg, err := buildConfig(sec.Name(), merged)
		if err != nil {
			return nil, err
		}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// mergeSection resolves one dataset section's keys against its named
// template (if any) and the DEFAULT section, section taking priority over
// template taking priority over DEFAULT. Unknown keys are rejected eagerly.
func mergeSection(sec, defaultSection *ini.Section, templateFile *ini.File) (map[string]string, error) {
	merged := make(map[string]string)

	for _, key := range defaultSection.Keys() {
		if !knownKeys[key.Name()] {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, sec.Name(), "load",
				fmt.Errorf("unknown option %q in DEFAULT", key.Name()))
		}
		merged[key.Name()] = key.Value()
	}

	if templateFile != nil {
		if templateName := sectionValue(sec, "template"); templateName != "" {
			tmplSec, err := templateFile.GetSection(templateName)
			if err != nil {
				return nil, zsnapderrors.New(zsnapderrors.KindConfigError, sec.Name(), "load",
					fmt.Errorf("unknown template %q: %w", templateName, err))
			}
			for _, key := range tmplSec.Keys() {
				if !knownKeys[key.Name()] {
					return nil, zsnapderrors.New(zsnapderrors.KindConfigError, sec.Name(), "load",
						fmt.Errorf("unknown option %q in template %q", key.Name(), templateName))
				}
				merged[key.Name()] = key.Value()
			}
		}
	}

	for _, key := range sec.Keys() {
		if !knownKeys[key.Name()] {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, sec.Name(), "load",
				fmt.Errorf("unknown option %q", key.Name()))
		}
		merged[key.Name()] = key.Value()
	}

	return merged, nil
}

func sectionValue(sec *ini.Section, key string) string {
	if !sec.HasKey(key) {
		return ""
	}
	return sec.Key(key).Value()
}

// buildConfig parses the merged string map into a typed Config. It does not
// apply defaults or validate — callers do both afterward.
func buildConfig(name string, merged map[string]string) (*Config, error) {
	cfg := &Config{Name: name}

	if mp := merged["mountpoint"]; mp != "" && !strings.EqualFold(mp, "none") {
		cfg.Mountpoint = mp
	}

	timeSpec, err := parseTimeSpec(merged["time"])
	if err != nil {
		return nil, zsnapderrors.New(zsnapderrors.KindConfigError, name, "load", err)
	}
	cfg.Time = timeSpec

	cfg.Snapshot = parseBool(merged["snapshot"], false)

	if s := merged["schema"]; s != "" {
		parsed, err := schema.Parse(s)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, name, "load", fmt.Errorf("schema: %w", err))
		}
		cfg.Schema = parsed
	}
	if s := merged["local_schema"]; s != "" {
		parsed, err := schema.Parse(s)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, name, "load", fmt.Errorf("local_schema: %w", err))
		}
		cfg.LocalSchema = parsed
		cfg.HasLocalSchema = true
	}

	cfg.ReplicateTarget = merged["replicate_target"]
	cfg.ReplicateSource = merged["replicate_source"]

	if _, ok := merged["replicate_endpoint"]; ok {
		return nil, zsnapderrors.New(zsnapderrors.KindConfigError, name, "load",
			fmt.Errorf("replicate_endpoint is deprecated and not supported; use replicate_endpoint_host/_port/_command"))
	}

	cfg.EndpointHost = merged["replicate_endpoint_host"]
	if p := merged["replicate_endpoint_port"]; p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, zsnapderrors.New(zsnapderrors.KindConfigError, name, "load", fmt.Errorf("replicate_endpoint_port: %w", err))
		}
		cfg.EndpointPort = port
	}
	cfg.EndpointCommand = merged["replicate_endpoint_command"]

	cfg.Compression = merged["compression"]
	cfg.PreExec = merged["preexec"]
	cfg.PostExec = merged["postexec"]
	cfg.ReplicatePostExec = merged["replicate_postexec"]

	cfg.CleanAll = parseBool(merged["clean_all"], false)
	cfg.LocalCleanAll = parseBool(merged["local_clean_all"], false)
	cfg.AllSnapshots = parseBool(merged["all_snapshots"], true)
	cfg.LogCommands = parseBool(merged["log_commands"], false)
	cfg.Template = merged["template"]

	return cfg, nil
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

func parseTimeSpec(s string) (TimeSpec, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "trigger") {
		return TimeSpec{Trigger: true}, nil
	}
	if s == "" {
		return TimeSpec{}, nil
	}

	var clocks []ClockTime
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hm := strings.SplitN(part, ":", 2)
		if len(hm) != 2 {
			return TimeSpec{}, fmt.Errorf("time: invalid clock value %q, want HH:MM", part)
		}
		hour, err := strconv.Atoi(hm[0])
		if err != nil || hour < 0 || hour > 23 {
			return TimeSpec{}, fmt.Errorf("time: invalid hour in %q", part)
		}
		minute, err := strconv.Atoi(hm[1])
		if err != nil || minute < 0 || minute > 59 {
			return TimeSpec{}, fmt.Errorf("time: invalid minute in %q", part)
		}
		clocks = append(clocks, ClockTime{Hour: hour, Minute: minute})
	}
	return TimeSpec{Clocks: clocks}, nil
}
