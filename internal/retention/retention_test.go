package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherbacov/zsnapd/internal/schema"
)

func mustParse(t *testing.T, s string) schema.Schema {
	t.Helper()
	parsed, err := schema.Parse(s)
	require.NoError(t, err)
	return parsed
}

func names(snaps []Snapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Name)
	}
	return out
}

// TestScenario6BucketBoundaries reproduces end-to-end scenario 6: schema
// 2k24h7d, now = 2024-06-15 10:30.
func TestScenario6BucketBoundaries(t *testing.T) {
	s := mustParse(t, "2k24h7d")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Name: "keep-span", Created: time.Date(2024, 6, 15, 0, 30, 0, 0, time.UTC), Managed: true},
		{Name: "hourly-oldest", Created: time.Date(2024, 6, 13, 5, 0, 0, 0, time.UTC), Managed: true},
		{Name: "too-old", Created: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), Managed: true},
	}

	keep, destroy := Plan(s, snaps, now, false)

	assert.Contains(t, names(keep), "keep-span")
	assert.Contains(t, names(keep), "hourly-oldest") // sole member of its bucket, survives as the oldest
	assert.Contains(t, names(destroy), "too-old")     // older than every bucket
	assert.NotContains(t, names(destroy), "keep-span")
	assert.NotContains(t, names(destroy), "hourly-oldest")
}

func TestEmptySnapshotSetYieldsEmptyDestroySet(t *testing.T) {
	s := mustParse(t, "3d0w0m0y")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	keep, destroy := Plan(s, nil, now, false)
	assert.Empty(t, keep)
	assert.Empty(t, destroy)
}

func TestAllZeroSchemaDestroysEverythingOlderThanToday(t *testing.T) {
	s := mustParse(t, "0k0h0d0w0m0y")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Name: "today", Created: time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC), Managed: true},
		{Name: "yesterday", Created: time.Date(2024, 6, 14, 23, 0, 0, 0, time.UTC), Managed: true},
	}
	keep, destroy := Plan(s, snaps, now, false)
	assert.ElementsMatch(t, []string{"today"}, names(keep))
	assert.ElementsMatch(t, []string{"yesterday"}, names(destroy))
}

func TestForeignSnapshotAlwaysKeptWhenCleanAllFalse(t *testing.T) {
	s := mustParse(t, "0k0h0d0w0m0y")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Name: "manual-before-migration", Created: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Managed: false},
	}
	keep, destroy := Plan(s, snaps, now, false)
	assert.ElementsMatch(t, []string{"manual-before-migration"}, names(keep))
	assert.Empty(t, destroy)
}

func TestForeignSnapshotDestroyedWhenCleanAllTrue(t *testing.T) {
	s := mustParse(t, "0k0h0d0w0m0y")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Name: "manual-before-migration", Created: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Managed: false},
	}
	keep, destroy := Plan(s, snaps, now, true)
	assert.Empty(t, keep)
	assert.ElementsMatch(t, []string{"manual-before-migration"}, names(destroy))
}

func TestSnapshotNewerThanFirstBucketAlwaysKept(t *testing.T) {
	s := mustParse(t, "3d")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Name: "this-morning", Created: time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC), Managed: true},
	}
	keep, destroy := Plan(s, snaps, now, false)
	assert.ElementsMatch(t, []string{"this-morning"}, names(keep))
	assert.Empty(t, destroy)
}

func TestNonKeepBucketKeepsExactlyOldestMember(t *testing.T) {
	s := mustParse(t, "3d")
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) // exactly midnight, so "today" is empty

	// All three land in the same daily bucket (yesterday).
	snaps := []Snapshot{
		{Name: "a", Created: time.Date(2024, 6, 14, 1, 0, 0, 0, time.UTC), Managed: true},
		{Name: "b", Created: time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC), Managed: true},
		{Name: "c", Created: time.Date(2024, 6, 14, 23, 0, 0, 0, time.UTC), Managed: true},
	}
	keep, destroy := Plan(s, snaps, now, false)
	assert.ElementsMatch(t, []string{"a"}, names(keep)) // oldest of the bucket
	assert.ElementsMatch(t, []string{"b", "c"}, names(destroy))
}

func TestKeepDaysBucketNeverDestroysAnything(t *testing.T) {
	s := mustParse(t, "3k")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Name: "a", Created: time.Date(2024, 6, 13, 1, 0, 0, 0, time.UTC), Managed: true},
		{Name: "b", Created: time.Date(2024, 6, 13, 12, 0, 0, 0, time.UTC), Managed: true},
		{Name: "c", Created: time.Date(2024, 6, 14, 23, 0, 0, 0, time.UTC), Managed: true},
	}
	keep, destroy := Plan(s, snaps, now, false)
	assert.Len(t, keep, 3)
	assert.Empty(t, destroy)
}

func TestKeepAndDestroyPartitionInput(t *testing.T) {
	s := mustParse(t, "2k24h7d3w11m4y")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	var snaps []Snapshot
	for i := 0; i < 400; i++ {
		snaps = append(snaps, Snapshot{
			Name:    time.Unix(0, 0).AddDate(0, 0, i).Format(time.RFC3339),
			Created: now.AddDate(0, 0, -i),
			Managed: true,
		})
	}

	keep, destroy := Plan(s, snaps, now, false)
	assert.Len(t, keep, len(snaps)-len(destroy))

	seen := make(map[string]bool, len(snaps))
	for _, s := range keep {
		assert.False(t, seen[s.Name])
		seen[s.Name] = true
	}
	for _, s := range destroy {
		assert.False(t, seen[s.Name])
		seen[s.Name] = true
	}
	assert.Len(t, seen, len(snaps))
}

// TestBoundaryTieResolvesToOlderBucket covers the "boundary cases" rule: a
// snapshot created exactly on the instant shared by two adjacent buckets
// belongs to the older of the two, not the newer one.
func TestBoundaryTieResolvesToOlderBucket(t *testing.T) {
	s := mustParse(t, "2d")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Name: "mid-bucket0", Created: time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC), Managed: true},
		{Name: "on-boundary", Created: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), Managed: true}, // shared edge of bucket0/bucket1
		{Name: "older-in-bucket1", Created: time.Date(2024, 6, 13, 12, 0, 0, 0, time.UTC), Managed: true},
	}

	keep, destroy := Plan(s, snaps, now, false)

	// If "on-boundary" were misassigned to the newer bucket (bucket0), it
	// would be older than "mid-bucket0" there and survive in its place.
	assert.ElementsMatch(t, []string{"mid-bucket0", "older-in-bucket1"}, names(keep))
	assert.ElementsMatch(t, []string{"on-boundary"}, names(destroy))
}

// TestDestroyOrderIsOldestFirst covers spec §4.5 step 5: destroys are
// issued sequentially, oldest first, regardless of which bucket (or no
// bucket at all) a candidate was grouped under.
func TestDestroyOrderIsOldestFirst(t *testing.T) {
	s := mustParse(t, "2k24h7d3w11m4y")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	var snaps []Snapshot
	for i := 0; i < 400; i++ {
		snaps = append(snaps, Snapshot{
			Name:    time.Unix(0, 0).AddDate(0, 0, i).Format(time.RFC3339),
			Created: now.AddDate(0, 0, -i),
			Managed: true,
		})
	}

	_, destroy := Plan(s, snaps, now, false)
	require.NotEmpty(t, destroy)

	for i := 1; i < len(destroy); i++ {
		assert.False(t, destroy[i].Created.Before(destroy[i-1].Created),
			"destroy[%d] (%s) is older than destroy[%d] (%s)", i, destroy[i].Created, i-1, destroy[i-1].Created)
	}
	oldest := destroy[0].Created
	for _, snap := range destroy {
		assert.False(t, snap.Created.Before(oldest))
	}
}

func TestIdempotence(t *testing.T) {
	s := mustParse(t, "2k24h7d3w11m4y")
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	var snaps []Snapshot
	for i := 0; i < 200; i++ {
		snaps = append(snaps, Snapshot{
			Name:    time.Unix(0, 0).AddDate(0, 0, i).Format(time.RFC3339),
			Created: now.AddDate(0, 0, -i),
			Managed: true,
		})
	}

	keep1, _ := Plan(s, snaps, now, false)
	keep2, destroy2 := Plan(s, keep1, now, false)

	assert.ElementsMatch(t, names(keep1), names(keep2))
	assert.Empty(t, destroy2)
}
