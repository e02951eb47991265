// Command zsnapd is the snapshot/replication daemon: it loads the process
// and dataset configuration files, then runs the scheduler until a
// termination signal arrives (spec §6 "CLI (daemon)").
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sherbacov/zsnapd/internal/daemonlog"
	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/engine"
	"github.com/sherbacov/zsnapd/internal/remote"
	"github.com/sherbacov/zsnapd/internal/scheduler"
	"github.com/sherbacov/zsnapd/internal/statusapi"
	"github.com/sherbacov/zsnapd/internal/timeutil"
	"github.com/sherbacov/zsnapd/internal/zsnapderrors"
)

// Exit codes, per spec §6: 0 clean shutdown, 1 config error, 2
// signal-terminated, >2 unexpected fatal error.
const (
	exitConfigError      = 1
	exitSignalTerminated = 2
	exitFatal            = 3
)

type flags struct {
	configPath string
	debug      string
	foreground bool
	verbose    bool
	memStats   bool
}

func main() {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "zsnapd",
		Short:         "ZFS snapshot lifecycle and replication daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "/etc/zsnapd/process.conf", "process configuration file path")
	cmd.Flags().StringVarP(&f.debug, "debug", "d", "normal", "debug level: 0|1|2|3|none|normal|verbose|extreme")
	cmd.Flags().BoolVarP(&f.foreground, "foreground", "S", false, "systemd mode; accepted for compatibility, zsnapd always runs in the foreground")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().BoolVarP(&f.memStats, "mem-stats", "b", false, "periodically log memory statistics")

	if err := cmd.Execute(); err != nil {
		if zsnapderrors.IsConfigError(err) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitConfigError)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}
}

func run(f *flags) error {
	procCfg, err := dsconfig.LoadProcessConfig(f.configPath)
	if err != nil {
		return err
	}

	debug := f.debug
	if f.verbose && debug == "normal" {
		debug = "verbose"
	}
	logger := daemonlog.New(procCfg, debug)

	configs, err := dsconfig.LoadDatasets(procCfg.DatasetConfigFile, "")
	if err != nil {
		return err
	}
	logger.Info("zsnapd: loaded dataset configuration", "path", procCfg.DatasetConfigFile, "datasets", len(configs))

	endpointFactory := func(cfg *dsconfig.Config) *remote.Endpoint {
		return remote.NewEndpoint(cfg.EndpointHost, cfg.EndpointPort, cfg.EndpointCommand, logger)
	}
	adapter := engine.NewLocalZFSAdapter()
	eng := engine.New(adapter, endpointFactory, timeutil.RealClock{}, logger)

	sleepInterval := procCfg.SleepTime
	if daemonlog.Level(debug) == slog.LevelDebug {
		sleepInterval = procCfg.DebugSleepTime
	}

	sched := &scheduler.Scheduler{
		Engine:        eng,
		Clock:         timeutil.RealClock{},
		SleepInterval: sleepInterval,
		Logger:        logger,
		Configs:       func() []*dsconfig.Config { return configs },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if f.memStats {
		go logMemStats(ctx, logger)
	}

	if procCfg.StatusAPIHost != "" {
		statusSrv, err := statusapi.NewServer(ctx, statusapi.Config{
			Host:                 procCfg.StatusAPIHost,
			Port:                 procCfg.StatusAPIPort,
			AuthenticationTokens: procCfg.StatusAPITokens,
		}, eng, adapter, func() []*dsconfig.Config { return configs }, logger)
		if err != nil {
			return err
		}
		go statusSrv.Serve()
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			if err := statusSrv.Close(closeCtx); err != nil {
				logger.Warn("zsnapd: status API close failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case sig := <-sigCh:
		// First signal drains the currently running dataset's current step
		// rather than killing in-flight send/receive pipelines (spec §5
		// "Cancellation"); a second signal forces an immediate exit.
		logger.Info("zsnapd: received termination signal, draining current step", "signal", sig)
		cancel()
		select {
		case <-done:
			logger.Info("zsnapd: clean shutdown")
		case <-sigCh:
			logger.Warn("zsnapd: second signal received, forcing exit")
		}
		os.Exit(exitSignalTerminated)
	case <-done:
		logger.Info("zsnapd: scheduler stopped")
	}
	return nil
}

func logMemStats(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var m runtime.MemStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runtime.ReadMemStats(&m)
			logger.Debug("zsnapd: memory stats", "allocBytes", m.Alloc, "sysBytes", m.Sys, "numGC", m.NumGC)
		}
	}
}
