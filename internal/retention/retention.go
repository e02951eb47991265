// Package retention implements the bucketed GFS ("keep-hours-days-weeks-
// months-years") aging planner: given a schema and the snapshots a dataset
// currently carries, it decides which snapshots survive and which are
// destroyed at the end of a tick.
package retention

import (
	"sort"
	"time"

	"github.com/sherbacov/zsnapd/internal/schema"
	"github.com/sherbacov/zsnapd/internal/timeutil"
)

// Snapshot is the planner's view of one candidate snapshot: its creation
// instant and whether its name matches one of the two managed conventions.
// Foreign (non-managed) snapshots are always kept unless cleanAll is set.
type Snapshot struct {
	Name    string
	Created time.Time
	Managed bool
}

// bucket is one resolved, absolute-time retention window.
type bucket struct {
	unit  schema.Unit
	start time.Time // exclusive
	end   time.Time // inclusive
}

// Plan applies the retention schema to the given snapshots as of now and
// returns the snapshots to keep and the snapshots to destroy. The two
// returned slices partition the input: every snapshot appears in exactly
// one of them.
//
// The "keep-days" (k) unit does not build literal buckets: it widens the
// always-kept zone backward from local midnight by (count-1) additional
// whole calendar days (today itself is always protected regardless of k),
// and every subsequent unit's bucket walk begins at the edge of that
// widened zone. This matches the "k buckets: no snapshot in them is ever
// destroyed" rule by construction — nothing in the always-kept zone is
// ever a bucket member to begin with.
func Plan(s schema.Schema, snapshots []Snapshot, now time.Time, cleanAll bool) (keep, destroy []Snapshot) {
	keepBoundary, buckets := boundaries(s, now)

	keep = make([]Snapshot, 0, len(snapshots))
	destroy = make([]Snapshot, 0, len(snapshots))

	byBucket := make(map[int][]Snapshot, len(buckets))
	noBucket := make([]Snapshot, 0)

	for _, snap := range snapshots {
		if !snap.Created.Before(keepBoundary) {
			keep = append(keep, snap)
			continue
		}

		idx := locate(buckets, snap.Created)
		if idx < 0 {
			noBucket = append(noBucket, snap)
			continue
		}
		byBucket[idx] = append(byBucket[idx], snap)
	}

	for idx := range buckets {
		members := byBucket[idx]
		if len(members) == 0 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].Created.Before(members[j].Created)
		})
		// Oldest member of the bucket survives; the rest are destroy candidates.
		keep = append(keep, members[0])
		for _, snap := range members[1:] {
			destroy = appendDestroyCandidate(destroy, &keep, snap, cleanAll)
		}
	}

	for _, snap := range noBucket {
		destroy = appendDestroyCandidate(destroy, &keep, snap, cleanAll)
	}

	// Destroys are issued oldest first (spec: "Destroys are issued
	// sequentially, oldest first"), regardless of which bucket — or no
	// bucket at all — a candidate came from.
	sort.Slice(destroy, func(i, j int) bool {
		return destroy[i].Created.Before(destroy[j].Created)
	})

	return keep, destroy
}

// appendDestroyCandidate either appends snap to destroy, or — when cleanAll
// is false and snap is foreign-named — appends it to keep instead (spec:
// "Foreign-named snapshots are always kept regardless of age" when
// clean_all is false).
func appendDestroyCandidate(destroy []Snapshot, keep *[]Snapshot, snap Snapshot, cleanAll bool) []Snapshot {
	if !cleanAll && !snap.Managed {
		*keep = append(*keep, snap)
		return destroy
	}
	return append(destroy, snap)
}

// boundaries resolves a schema into the always-kept-zone lower edge and
// the ordered list of h/d/w/m/y buckets, oldest unit last, newest bucket
// within a unit first.
func boundaries(s schema.Schema, now time.Time) (keepBoundary time.Time, buckets []bucket) {
	midnight := timeutil.Midnight(now)

	keepBoundary = midnight
	for _, b := range s {
		if b.Unit == schema.UnitKeep && b.Count > 0 {
			keepBoundary = midnight.Add(-time.Duration(b.Count-1) * 24 * time.Hour)
		}
	}

	cursor := keepBoundary
	for _, b := range s {
		if b.Unit == schema.UnitKeep || b.Count == 0 {
			continue
		}
		length := b.Unit.Length()
		for i := 0; i < b.Count; i++ {
			end := cursor
			start := cursor.Add(-length)
			buckets = append(buckets, bucket{unit: b.Unit, start: start, end: end})
			cursor = start
		}
	}
	return keepBoundary, buckets
}

// locate returns the index of the bucket containing t, or -1 if t is
// older than every bucket's lower edge (a destroy candidate with no
// surviving member to protect it).
//
// Bucket membership is (start, end]: the newer edge is inclusive and the
// older edge is exclusive, so a snapshot created exactly on a boundary
// shared by two adjacent buckets belongs to the older of the two.
func locate(buckets []bucket, t time.Time) int {
	for i, b := range buckets {
		if t.After(b.start) && !t.After(b.end) {
			return i
		}
	}
	return -1
}
