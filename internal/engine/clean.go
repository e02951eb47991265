package engine

import (
	"context"
	"time"

	"github.com/sherbacov/zsnapd/internal/remote"
	"github.com/sherbacov/zsnapd/internal/retention"
	"github.com/sherbacov/zsnapd/internal/schema"
	"github.com/sherbacov/zsnapd/internal/timeutil"
)

// planDestroys lists dataset's snapshots, runs the retention planner
// against s with now as the reference instant, and returns the names to
// destroy in the order the planner emitted them. retention.Plan sorts its
// destroy output oldest-created first across all buckets, matching spec
// §4.5's "Destroys are issued sequentially, oldest first".
func planDestroys(ctx context.Context, adapter ZFSAdapter, dataset string, s schema.Schema, now time.Time, cleanAll bool) ([]string, error) {
	datasets, err := adapter.Snapshots(ctx, dataset)
	if err != nil {
		return nil, err
	}

	snaps := make([]retention.Snapshot, 0, len(datasets))
	for _, ds := range datasets {
		name := snapshotShortName(ds.Name)
		snaps = append(snaps, retention.Snapshot{
			Name:    name,
			Created: time.Unix(int64(ds.Creation), 0),
			Managed: timeutil.IsManagedName(name),
		})
	}

	_, destroy := retention.Plan(s, snaps, now, cleanAll)

	names := make([]string, len(destroy))
	for i, snap := range destroy {
		names[i] = snap.Name
	}
	return names, nil
}

func destroySnapshots(ctx context.Context, adapter ZFSAdapter, dataset string, names []string) error {
	for _, name := range names {
		if err := adapter.DestroySnapshot(ctx, dataset, name); err != nil {
			return err
		}
	}
	return nil
}

// planRemoteDestroys mirrors planDestroys for a push's remote target,
// listing and planning through the endpoint instead of the local adapter.
func planRemoteDestroys(ctx context.Context, endpoint *remote.Endpoint, dataset string, s schema.Schema, now time.Time, cleanAll bool) ([]string, error) {
	datasets, err := endpoint.Snapshots(ctx, dataset)
	if err != nil {
		return nil, err
	}

	snaps := make([]retention.Snapshot, 0, len(datasets))
	for _, ds := range datasets {
		name := snapshotShortName(ds.Name)
		snaps = append(snaps, retention.Snapshot{
			Name:    name,
			Created: time.Unix(int64(ds.Creation), 0),
			Managed: timeutil.IsManagedName(name),
		})
	}

	_, destroy := retention.Plan(s, snaps, now, cleanAll)

	names := make([]string, len(destroy))
	for i, snap := range destroy {
		names[i] = snap.Name
	}
	return names, nil
}
