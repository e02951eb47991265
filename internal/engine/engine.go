// Package engine implements the per-dataset execution engine: the
// pre/snapshot/replicate/post/clean sequence that a due dataset runs once
// per tick, serialized so at most one run per dataset is active at a time.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	eventemitter "github.com/vansante/go-event-emitter"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/remote"
	"github.com/sherbacov/zsnapd/internal/timeutil"
)

// State is one node of the per-dataset execution state machine.
type State string

const (
	StateIdle  State = "IDLE"
	StatePre   State = "PRE"
	StateSnap  State = "SNAP"
	StateRepl  State = "REPL"
	StatePost  State = "POST"
	StateClean State = "CLEAN"
)

// Result records the outcome of one Engine.Run call: what state the
// sequence reached, what it did, and how it ended. The Engine does not
// keep Results; internal/statusapi reports in-flight state via CurrentRun.
type Result struct {
	Dataset string

	FinalState State
	Err        error

	SnapshotTaken      string
	ReplicationSkipped bool
	DestroyedLocal     []string
	DestroyedRemote    []string
}

// EndpointFactory builds the *remote.Endpoint a dataset's replication step
// should use. Injected so tests substitute fakes instead of dialing real
// hosts.
type EndpointFactory func(cfg *dsconfig.Config) *remote.Endpoint

// Engine runs the pre/snapshot/replicate/post/clean sequence (spec §4.5)
// for one dataset at a time, serialized per dataset by a logical lock,
// emitting lifecycle events the way job/runner.go emits create/send/prune
// events for its own feature set.
type Engine struct {
	*eventemitter.Emitter

	adapter   ZFSAdapter
	endpoints EndpointFactory
	clock     timeutil.Clock
	logger    *slog.Logger

	lockMu sync.Mutex
	locked map[string]struct{}

	currentMu sync.Mutex
	current   map[string]*RunStatus
}

// New builds an Engine. adapter is usually NewLocalZFSAdapter(); endpoints
// builds a *remote.Endpoint per dataset configuration; clock is usually
// timeutil.RealClock{}.
func New(adapter ZFSAdapter, endpoints EndpointFactory, clock timeutil.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		Emitter:   eventemitter.NewEmitter(false),
		adapter:   adapter,
		endpoints: endpoints,
		clock:     clock,
		logger:    logger,
		locked:    make(map[string]struct{}),
		current:   make(map[string]*RunStatus),
	}
}

// lockDataset grounds on job/runner.go's lockDataset/unlock closure pair: a
// dataset already running is skipped rather than queued, matching spec §3's
// "For any dataset at any instant, at most one execution-engine run is
// active."
func (e *Engine) lockDataset(name string) (succeeded bool, unlock func()) {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()

	if _, busy := e.locked[name]; busy {
		return false, func() {}
	}
	e.locked[name] = struct{}{}
	return true, func() {
		e.lockMu.Lock()
		delete(e.locked, name)
		e.lockMu.Unlock()
	}
}

// Run executes the full pre/snap/repl/post/clean sequence for cfg. If
// another Run for the same dataset is already in flight, it returns
// immediately with FinalState left at its zero value and a nil Err.
func (e *Engine) Run(ctx context.Context, cfg *dsconfig.Config) *Result {
	ok, unlock := e.lockDataset(cfg.Name)
	if !ok {
		return &Result{Dataset: cfg.Name}
	}
	defer unlock()

	result := &Result{Dataset: cfg.Name, FinalState: StateIdle}
	now := timeutil.FloorToMinute(e.clock.Now())

	if cfg.Time.Trigger && !consumeTrigger(cfg.Mountpoint) {
		return result
	}

	result.FinalState = StatePre
	e.setState(cfg.Name, StatePre)
	if err := runHook(ctx, cfg.Name, "preexec", cfg.PreExec); err != nil {
		return e.fail(result, err)
	}

	result.FinalState = StateSnap
	e.setState(cfg.Name, StateSnap)
	if cfg.Snapshot {
		name, err := e.snapshot(ctx, cfg, now)
		if err != nil {
			return e.fail(result, err)
		}
		result.SnapshotTaken = name
	}

	result.FinalState = StateRepl
	e.setState(cfg.Name, StateRepl)
	replicated := false
	if cfg.IsPush() || cfg.IsPull() {
		endpoint := e.endpoints(cfg)
		if err := endpoint.Probe(ctx); err != nil {
			result.ReplicationSkipped = true
			e.EmitEvent(ReplicationSkippedEvent, cfg.Name, err)
		} else {
			e.EmitEvent(ReplicationStartedEvent, cfg.Name)
			if err := e.replicate(ctx, cfg, endpoint); err != nil {
				return e.fail(result, err)
			}
			e.EmitEvent(ReplicationFinishedEvent, cfg.Name)
			replicated = true
		}
	}

	result.FinalState = StatePost
	e.setState(cfg.Name, StatePost)
	if err := runHook(ctx, cfg.Name, "postexec", cfg.PostExec); err != nil {
		return e.fail(result, err)
	}
	if replicated {
		if err := runHook(ctx, cfg.Name, "replicate_postexec", cfg.ReplicatePostExec); err != nil {
			return e.fail(result, err)
		}
	}

	result.FinalState = StateClean
	e.setState(cfg.Name, StateClean)
	if err := e.clean(ctx, cfg, now, result); err != nil {
		return e.fail(result, err)
	}

	result.FinalState = StateIdle
	e.setState(cfg.Name, StateIdle)
	return result
}

// fail records a step failure at the per-dataset boundary (spec §7's
// propagation policy) and routes the sequence back to IDLE.
func (e *Engine) fail(result *Result, err error) *Result {
	result.Err = err
	e.logger.Error("dataset run failed", "dataset", result.Dataset, "state", result.FinalState, "error", err)
	e.EmitEvent(RunFailedEvent, result.Dataset, string(result.FinalState), err)
	result.FinalState = StateIdle
	return result
}

func (e *Engine) snapshot(ctx context.Context, cfg *dsconfig.Config, now time.Time) (string, error) {
	name := timeutil.FormatSnapshotName(now)

	existing, err := e.adapter.Snapshots(ctx, cfg.Name)
	if err != nil {
		return "", err
	}
	for _, ds := range existing {
		if snapshotShortName(ds.Name) == name {
			// Clock-granularity collision with an existing snapshot: treat as success.
			return name, nil
		}
	}

	if err := e.adapter.CreateSnapshot(ctx, cfg.Name, name); err != nil {
		return "", err
	}
	e.EmitEvent(SnapshotCreatedEvent, cfg.Name, name)
	return name, nil
}

func (e *Engine) replicate(ctx context.Context, cfg *dsconfig.Config, endpoint *remote.Endpoint) error {
	if cfg.IsPush() {
		return e.replicatePush(ctx, cfg, endpoint)
	}
	return e.replicatePull(ctx, cfg, endpoint)
}

func (e *Engine) replicatePush(ctx context.Context, cfg *dsconfig.Config, endpoint *remote.Endpoint) error {
	sourceSnaps, err := e.adapter.Snapshots(ctx, cfg.Name)
	if err != nil {
		return err
	}
	listTarget := endpoint.Snapshots
	if endpoint.IsLocal() {
		listTarget = e.adapter.Snapshots
	}
	targetSnaps, err := listTarget(ctx, cfg.ReplicateTarget)
	if err != nil {
		return err
	}

	sourceNames := snapshotNames(sourceSnaps, cfg.AllSnapshots)
	targetNames := snapshotNames(targetSnaps, cfg.AllSnapshots)
	steps := planReplicationSteps(sourceNames, targetNames)

	onBytes := func(n int64) { e.addBytesTransferred(cfg.Name, n) }
	for _, step := range steps {
		if err := runPushStep(ctx, e.adapter, endpoint, cfg.Name, cfg.ReplicateTarget, cfg.Compression, step, onBytes); err != nil {
			return err
		}
	}
	endpoint.ClearCache(cfg.ReplicateTarget)
	return nil
}

func (e *Engine) replicatePull(ctx context.Context, cfg *dsconfig.Config, endpoint *remote.Endpoint) error {
	sourceSnaps, err := endpoint.Snapshots(ctx, cfg.ReplicateSource)
	if err != nil {
		return err
	}
	targetSnaps, err := e.adapter.Snapshots(ctx, cfg.Name)
	if err != nil {
		return err
	}

	sourceNames := snapshotNames(sourceSnaps, cfg.AllSnapshots)
	targetNames := snapshotNames(targetSnaps, cfg.AllSnapshots)
	steps := planReplicationSteps(sourceNames, targetNames)

	onBytes := func(n int64) { e.addBytesTransferred(cfg.Name, n) }
	for _, step := range steps {
		if err := runPullStep(ctx, e.adapter, endpoint, cfg.ReplicateSource, cfg.Name, cfg.Compression, step, onBytes); err != nil {
			return err
		}
	}
	endpoint.ClearCache(cfg.ReplicateSource)
	return nil
}

// clean runs the retention planner locally, using local_schema instead of
// schema when this host is the pull's receiving side, and — for push
// configurations with local_schema set — against the remote target too
// (spec §4.5 step 5: "For push configurations, local_schema is applied to
// the remote target").
func (e *Engine) clean(ctx context.Context, cfg *dsconfig.Config, now time.Time, result *Result) error {
	localSchema := cfg.Schema
	localCleanAll := cfg.CleanAll
	if cfg.IsPull() && cfg.HasLocalSchema {
		localSchema = cfg.LocalSchema
		localCleanAll = cfg.LocalCleanAll
	}

	destroy, err := planDestroys(ctx, e.adapter, cfg.Name, localSchema, now, localCleanAll)
	if err != nil {
		return err
	}
	if err := destroySnapshots(ctx, e.adapter, cfg.Name, destroy); err != nil {
		return err
	}
	result.DestroyedLocal = destroy
	for _, name := range destroy {
		e.EmitEvent(SnapshotDestroyedEvent, cfg.Name, name)
	}

	if cfg.IsPush() && cfg.HasLocalSchema && !result.ReplicationSkipped {
		endpoint := e.endpoints(cfg)
		remoteDestroy, err := planRemoteDestroys(ctx, endpoint, cfg.ReplicateTarget, cfg.LocalSchema, now, cfg.LocalCleanAll)
		if err != nil {
			return err
		}
		for _, name := range remoteDestroy {
			if err := endpoint.DestroySnapshot(ctx, cfg.ReplicateTarget, name); err != nil {
				return err
			}
		}
		result.DestroyedRemote = remoteDestroy
	}
	return nil
}
