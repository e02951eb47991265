// Package scheduler implements the process-wide loop (spec §4.6): sleep,
// walk the configured datasets in file order, dispatch the due ones to the
// execution engine, sequentially, once per tick.
package scheduler

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/timeutil"
)

// Tick is the "tickable unit" SPEC_FULL.md's design notes call for: a pure
// function from (the configured datasets, the previous tick's instant, the
// current instant) to the subset of datasets due this tick, in their
// configured order. The sleep itself lives in Scheduler.Run, not here, so
// this is deterministically testable without a real clock.
func Tick(cfgs []*dsconfig.Config, previous, now time.Time) []*dsconfig.Config {
	var due []*dsconfig.Config
	for _, cfg := range cfgs {
		if cfg.Time.Trigger {
			if triggerPending(cfg.Mountpoint) {
				due = append(due, cfg)
			}
			continue
		}
		if crossedAnyClock(cfg.Time.Clocks, previous, now) {
			due = append(due, cfg)
		}
	}
	return due
}

// triggerPending reports whether <mountpoint>/.trigger exists, without
// consuming it — the engine itself removes the file when it actually runs
// the dataset (spec: "the engine consumes (deletes) the .trigger file...
// before step 1").
func triggerPending(mountpoint string) bool {
	if mountpoint == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(mountpoint, ".trigger"))
	return err == nil
}

// crossedAnyClock reports whether the wall clock crossed any of clocks'
// HH:MM values in the interval (previous, now]. Missed ticks — previous and
// now spanning more than one configured time, or more than one calendar
// day — coalesce into a single true, matching spec §4.5's "the engine never
// tries to catch up multiple runs."
func crossedAnyClock(clocks []dsconfig.ClockTime, previous, now time.Time) bool {
	if len(clocks) == 0 || !now.After(previous) {
		return false
	}

	for day := timeutil.Midnight(previous); !day.After(now); day = day.AddDate(0, 0, 1) {
		for _, c := range clocks {
			candidate := time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
			if candidate.After(previous) && !candidate.After(now) {
				return true
			}
		}
	}
	return false
}
