package engine

import (
	"context"
	"io"

	"github.com/sherbacov/zsnapd/internal/zfs"
)

// ZFSAdapter is the subset of ZFS operations the execution engine needs.
// Grounded on SPEC_FULL.md's "Global daemon state -> explicit objects"
// design note: the scheduler/engine should accept a clock, a ZFS adapter, a
// remote-endpoint factory and a logger, all injectable for tests, rather
// than reaching for package-level zfs calls directly the way job/runner.go
// does. localZFSAdapter is the production implementation.
type ZFSAdapter interface {
	Snapshots(ctx context.Context, dataset string) ([]zfs.Dataset, error)
	CreateSnapshot(ctx context.Context, dataset, name string) error
	DestroySnapshot(ctx context.Context, dataset, name string) error
	Send(ctx context.Context, dataset, name, incrementalBase string, w io.Writer) error
	Receive(ctx context.Context, dataset, name string, r io.Reader) error
}

type localZFSAdapter struct{}

// NewLocalZFSAdapter returns the production ZFSAdapter, backed by the real
// zfs command-line tool via internal/zfs.
func NewLocalZFSAdapter() ZFSAdapter { return localZFSAdapter{} }

func (localZFSAdapter) Snapshots(ctx context.Context, dataset string) ([]zfs.Dataset, error) {
	return zfs.Snapshots(ctx, dataset)
}

func (localZFSAdapter) CreateSnapshot(ctx context.Context, dataset, name string) error {
	ds, err := zfs.GetDataset(ctx, dataset)
	if err != nil {
		return err
	}
	_, err = ds.Snapshot(ctx, name, false)
	return err
}

func (localZFSAdapter) DestroySnapshot(ctx context.Context, dataset, name string) error {
	ds, err := zfs.GetDataset(ctx, dataset+"@"+name)
	if err != nil {
		return err
	}
	return ds.Destroy(ctx, zfs.DestroyDefault)
}

func (localZFSAdapter) Send(ctx context.Context, dataset, name, incrementalBase string, w io.Writer) error {
	ds, err := zfs.GetDataset(ctx, dataset+"@"+name)
	if err != nil {
		return err
	}

	opts := zfs.SendOptions{}
	if incrementalBase != "" {
		base, err := zfs.GetDataset(ctx, dataset+"@"+incrementalBase)
		if err != nil {
			return err
		}
		opts.IncrementalBase = base
	}
	return ds.SendSnapshot(ctx, w, opts)
}

func (localZFSAdapter) Receive(ctx context.Context, dataset, name string, r io.Reader) error {
	_, err := zfs.ReceiveSnapshot(ctx, r, dataset+"@"+name, zfs.ReceiveOptions{})
	return err
}
