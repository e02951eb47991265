package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sherbacov/zsnapd/internal/timeutil"
	"github.com/sherbacov/zsnapd/internal/zfs"
)

// fakeAdapter is an in-memory ZFSAdapter double, grounded on SPEC_FULL.md's
// injectable-adapter design note so the engine's state machine can be
// tested deterministically without a real zfs binary.
type fakeAdapter struct {
	mu        sync.Mutex
	snapshots map[string]map[string]uint64 // dataset -> name -> creation epoch
	createErr error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{snapshots: make(map[string]map[string]uint64)}
}

func (f *fakeAdapter) seed(dataset, name string, creation uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshots[dataset] == nil {
		f.snapshots[dataset] = make(map[string]uint64)
	}
	f.snapshots[dataset][name] = creation
}

func (f *fakeAdapter) Snapshots(_ context.Context, dataset string) ([]zfs.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.snapshots[dataset]))
	for name := range f.snapshots[dataset] {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return f.snapshots[dataset][names[i]] < f.snapshots[dataset][names[j]]
	})

	out := make([]zfs.Dataset, 0, len(names))
	for _, name := range names {
		out = append(out, zfs.Dataset{
			Name:     dataset + "@" + name,
			Type:     zfs.DatasetSnapshot,
			Creation: f.snapshots[dataset][name],
		})
	}
	return out, nil
}

func (f *fakeAdapter) CreateSnapshot(_ context.Context, dataset, name string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshots[dataset] == nil {
		f.snapshots[dataset] = make(map[string]uint64)
	}
	var creation uint64
	if t, ok := timeutil.ParseSnapshotName(name, time.UTC); ok {
		creation = uint64(t.Unix())
	}
	f.snapshots[dataset][name] = creation
	return nil
}

func (f *fakeAdapter) DestroySnapshot(_ context.Context, dataset, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshots[dataset] == nil {
		return fmt.Errorf("no such dataset %s", dataset)
	}
	if _, ok := f.snapshots[dataset][name]; !ok {
		return fmt.Errorf("no such snapshot %s@%s", dataset, name)
	}
	delete(f.snapshots[dataset], name)
	return nil
}

func (f *fakeAdapter) Send(_ context.Context, dataset, name, _ string, w io.Writer) error {
	_, err := w.Write([]byte(dataset + "@" + name))
	return err
}

func (f *fakeAdapter) Receive(_ context.Context, dataset, name string, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshots[dataset] == nil {
		f.snapshots[dataset] = make(map[string]uint64)
	}
	f.snapshots[dataset][name] = uint64(len(payload))
	return nil
}
