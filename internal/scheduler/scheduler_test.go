package scheduler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/engine"
	"github.com/sherbacov/zsnapd/internal/remote"
	"github.com/sherbacov/zsnapd/internal/timeutil"
	"github.com/sherbacov/zsnapd/internal/zfs"
)

// noopAdapter is the smallest engine.ZFSAdapter that lets a trigger-driven,
// non-snapshotting, non-replicating dataset complete a run successfully —
// enough to exercise Scheduler.Run's dispatch without a real zfs binary.
type noopAdapter struct{}

func (a *noopAdapter) Snapshots(context.Context, string) ([]zfs.Dataset, error) { return nil, nil }
func (a *noopAdapter) CreateSnapshot(context.Context, string, string) error     { return nil }
func (a *noopAdapter) DestroySnapshot(context.Context, string, string) error    { return nil }
func (a *noopAdapter) Send(context.Context, string, string, string, io.Writer) error {
	return nil
}
func (a *noopAdapter) Receive(context.Context, string, string, io.Reader) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localEndpoints(*dsconfig.Config) *remote.Endpoint {
	return remote.NewEndpoint("", 0, "", discardLogger())
}

func TestSchedulerRunDispatchesDueTriggerDataset(t *testing.T) {
	dir := t.TempDir()
	triggerPath := dir + "/.trigger"
	f, err := os.Create(triggerPath)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	adapter := &noopAdapter{}
	eng := engine.New(adapter, localEndpoints, timeutil.RealClock{}, discardLogger())

	cfg := &dsconfig.Config{
		Name:       "zpool/a",
		Mountpoint: dir,
		Time:       dsconfig.TimeSpec{Trigger: true},
	}

	sched := &Scheduler{
		Engine:        eng,
		Clock:         timeutil.RealClock{},
		SleepInterval: 20 * time.Millisecond,
		Logger:        discardLogger(),
		Configs:       func() []*dsconfig.Config { return []*dsconfig.Config{cfg} },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	assert.NoFileExists(t, triggerPath)
}

func TestSchedulerRunTickDispatchesDueDatasetsInOrder(t *testing.T) {
	adapter := &noopAdapter{}
	eng := engine.New(adapter, localEndpoints, timeutil.RealClock{}, discardLogger())

	var ran []string
	var mu sync.Mutex
	eng.AddListener(engine.RunFailedEvent, func(args ...any) {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, args[0].(string))
	})

	// Both datasets fail at preexec so each dispatched run emits exactly one
	// RunFailedEvent -- a cheap way to observe dispatch order without a real
	// snapshot/replicate/clean path.
	a := &dsconfig.Config{Name: "zpool/a", Time: dsconfig.TimeSpec{Clocks: []dsconfig.ClockTime{{Hour: 21}}}, PreExec: "exit 1"}
	b := &dsconfig.Config{Name: "zpool/b", Time: dsconfig.TimeSpec{Clocks: []dsconfig.ClockTime{{Hour: 21}}}, PreExec: "exit 1"}

	sched := &Scheduler{
		Engine:  eng,
		Logger:  discardLogger(),
		Configs: func() []*dsconfig.Config { return []*dsconfig.Config{a, b} },
	}
	previous := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	sched.runTick(context.Background(), previous, now)

	require.Len(t, ran, 2)
	assert.Equal(t, []string{"zpool/a", "zpool/b"}, ran)
}

func TestSchedulerRunStopsOnContextCancellation(t *testing.T) {
	adapter := &noopAdapter{}
	eng := engine.New(adapter, localEndpoints, timeutil.RealClock{}, discardLogger())

	sched := &Scheduler{
		Engine:        eng,
		Clock:         timeutil.RealClock{},
		SleepInterval: 10 * time.Millisecond,
		Logger:        discardLogger(),
		Configs:       func() []*dsconfig.Config { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Scheduler.Run did not return after context cancellation")
	}
}
