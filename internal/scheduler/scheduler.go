package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/engine"
	"github.com/sherbacov/zsnapd/internal/timeutil"
)

// Scheduler is the process-wide loop: sleep sleepInterval, then Tick the
// configured datasets and dispatch the due ones to the engine sequentially
// (spec §4.6: "Datasets are processed sequentially within a tick to bound
// ZFS tool concurrency and make log output legible").
//
// Grounded on job/runner.go's Run()/runCreateSnapshots()-style ticker loop,
// restructured from "one goroutine per feature, racing across datasets"
// into "one loop, one dataset-sweep per tick" — the teacher's multi-
// goroutine-per-feature shape doesn't fit spec's explicit per-tick
// sequential-dataset ordering guarantee.
type Scheduler struct {
	Engine        *engine.Engine
	Clock         timeutil.Clock
	SleepInterval time.Duration
	Logger        *slog.Logger

	// Configs returns the current dataset configuration set in file order.
	// A function rather than a plain slice so a future reconfigure can
	// swap it between ticks without the scheduler needing to know.
	Configs func() []*dsconfig.Config
}

// Run blocks until ctx is done, sleeping SleepInterval between ticks.
func (s *Scheduler) Run(ctx context.Context) {
	previous := s.Clock.Now()

	ticker := time.NewTicker(s.SleepInterval)
	defer ticker.Stop()

	s.Logger.Info("scheduler.Run: starting", "interval", s.SleepInterval)
	defer s.Logger.Info("scheduler.Run: stopped")

	for {
		select {
		case <-ticker.C:
			now := s.Clock.Now()
			s.runTick(ctx, previous, now)
			previous = now
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, previous, now time.Time) {
	cfgs := s.Configs()
	due := Tick(cfgs, previous, now)

	for _, cfg := range due {
		if ctx.Err() != nil {
			return
		}
		result := s.Engine.Run(ctx, cfg)
		if result.Err != nil {
			s.Logger.Error("scheduler.runTick: dataset run failed",
				"dataset", cfg.Name, "state", result.FinalState, "error", result.Err)
			continue
		}
		s.Logger.Debug("scheduler.runTick: dataset run complete",
			"dataset", cfg.Name, "state", result.FinalState, "snapshot", result.SnapshotTaken)
	}
}
