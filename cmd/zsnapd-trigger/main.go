// Command zsnapd-trigger writes a dataset's trigger file, optionally after
// confirming its replication endpoint is reachable (spec §6 "CLI
// (auxiliaries)"). It's the collaborator a remote ForceCommand setup (or an
// operator's cron job) invokes to ask the daemon to run a dataset on its
// next tick instead of waiting for a clock crossing.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sherbacov/zsnapd/internal/daemonlog"
	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/remote"
)

const triggerFileName = ".trigger"

func main() {
	var configPath string
	var probe bool

	cmd := &cobra.Command{
		Use:           "zsnapd-trigger <mountpoint-or-dataset>",
		Short:         "Write a dataset's trigger file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, args[0], probe)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "/etc/zsnapd/process.conf", "process configuration file path")
	cmd.Flags().BoolVarP(&probe, "probe", "p", false, "probe the dataset's replication endpoint before writing the trigger file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, arg string, probe bool) error {
	logger := daemonlog.New(&dsconfig.ProcessConfig{LogFacility: "zsnapd-trigger"}, "normal")

	mountpoint := arg
	var cfg *dsconfig.Config

	if !strings.HasPrefix(arg, "/") {
		procCfg, err := dsconfig.LoadProcessConfig(configPath)
		if err != nil {
			return err
		}
		configs, err := dsconfig.LoadDatasets(procCfg.DatasetConfigFile, "")
		if err != nil {
			return err
		}
		for _, c := range configs {
			if c.Name == arg {
				cfg = c
				break
			}
		}
		if cfg == nil {
			return fmt.Errorf("zsnapd-trigger: dataset %q not found in %s", arg, procCfg.DatasetConfigFile)
		}
		if cfg.Mountpoint == "" {
			return fmt.Errorf("zsnapd-trigger: dataset %q has no mountpoint configured", arg)
		}
		mountpoint = cfg.Mountpoint
	}

	if probe {
		if cfg == nil {
			return fmt.Errorf("zsnapd-trigger: --probe requires a dataset name, not a bare mountpoint")
		}
		endpoint := remote.NewEndpoint(cfg.EndpointHost, cfg.EndpointPort, cfg.EndpointCommand, logger)
		if err := endpoint.Probe(context.Background()); err != nil {
			return fmt.Errorf("zsnapd-trigger: endpoint probe failed: %w", err)
		}
	}

	path := filepath.Join(mountpoint, triggerFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("zsnapd-trigger: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("zsnapd-trigger: closing %s: %w", path, err)
	}

	logger.Info("zsnapd-trigger: wrote trigger file", "path", path)
	fmt.Println(path)
	return nil
}
