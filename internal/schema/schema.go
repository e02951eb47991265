// Package schema parses and renders retention schema strings such as
// "2k24h7d3w11m4y" into an ordered sequence of buckets, one per unit.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is one of the six retention units, in the fixed order the schema
// grammar requires.
type Unit byte

// The six recognized units, in the order they must appear in a schema string.
const (
	UnitKeep  Unit = 'k' // keep-days: never destroyed
	UnitHour  Unit = 'h'
	UnitDay   Unit = 'd'
	UnitWeek  Unit = 'w'
	UnitMonth Unit = 'm'
	UnitYear  Unit = 'y'
)

// order is the fixed, required appearance order of units in a schema string.
var order = []Unit{UnitKeep, UnitHour, UnitDay, UnitWeek, UnitMonth, UnitYear}

// Length returns the bucket length for the unit: an hour, a day, 7 days (week),
// 30 days (month), or 360 days (year). UnitKeep has no bucket length of its
// own; its buckets are sized like UnitDay's (they anchor the k/h span).
func (u Unit) Length() time.Duration {
	switch u {
	case UnitKeep, UnitDay:
		return 24 * time.Hour
	case UnitHour:
		return time.Hour
	case UnitWeek:
		return 7 * 24 * time.Hour
	case UnitMonth:
		return 30 * 24 * time.Hour
	case UnitYear:
		return 360 * 24 * time.Hour
	default:
		return 0
	}
}

// Bucket is one (unit, count) pair of a parsed schema.
type Bucket struct {
	Unit  Unit
	Count int
}

// Schema is an ordered, parsed retention schema. Units absent from the
// original string have a zero Count but are always present in fixed order,
// which keeps bucket-boundary walking (internal/retention) simple.
type Schema []Bucket

// Parse parses a schema string like "2k24h7d3w11m4y" into a Schema. Units
// must appear in the fixed k,h,d,w,m,y order; an absent unit defaults to
// count zero. Any other order, an unrecognized unit letter, or a malformed
// count is a parse error.
func Parse(s string) (Schema, error) {
	counts := make(map[Unit]int, len(order))

	lastSeen := -1
	numStart := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			continue
		}

		unit := Unit(c)
		idx := unitIndex(unit)
		if idx < 0 {
			return nil, fmt.Errorf("schema: unrecognized unit %q in %q", string(c), s)
		}
		if idx <= lastSeen {
			return nil, fmt.Errorf("schema: unit %q out of order in %q (units must appear in k,h,d,w,m,y order)", string(c), s)
		}
		if numStart == i {
			return nil, fmt.Errorf("schema: unit %q missing a count in %q", string(c), s)
		}

		count, err := strconv.Atoi(s[numStart:i])
		if err != nil {
			return nil, fmt.Errorf("schema: invalid count for unit %q in %q: %w", string(c), s, err)
		}
		counts[unit] = count
		lastSeen = idx
		numStart = i + 1
	}
	if numStart != len(s) {
		return nil, fmt.Errorf("schema: trailing digits without a unit in %q", s)
	}

	out := make(Schema, len(order))
	for i, u := range order {
		out[i] = Bucket{Unit: u, Count: counts[u]}
	}
	return out, nil
}

func unitIndex(u Unit) int {
	for i, o := range order {
		if o == u {
			return i
		}
	}
	return -1
}

// String renders the schema back to its canonical form: units in fixed
// order, zero-count units omitted. Parse(s.String()) round-trips to an
// equal Schema for any Schema produced by Parse.
func (s Schema) String() string {
	var b strings.Builder
	for _, bucket := range s {
		if bucket.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "%d%c", bucket.Count, bucket.Unit)
	}
	return b.String()
}
