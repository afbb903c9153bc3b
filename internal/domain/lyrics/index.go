package lyrics

import (
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// TimeIndex maps a playback time to a line index.
// Times keep insertion order and are not required to be sorted.
type TimeIndex struct {
	times []float64
}

// NewTimeIndex creates an index over line start times.
func NewTimeIndex(times []float64) *TimeIndex {
	cp := make([]float64, len(times))
	copy(cp, times)
	return &TimeIndex{times: cp}
}

// Len returns the number of indexed lines.
func (x *TimeIndex) Len() int {
	return len(x.times)
}

// Lookup returns the last index whose time is <= t, scanning from the end.
// With out-of-order input this is the last inserted qualifying line.
func (x *TimeIndex) Lookup(t float64) mo.Option[int] {
	_, idx, ok := lo.FindLastIndexOf(x.times, func(lineTime float64) bool {
		return lineTime <= t
	})
	if !ok {
		return mo.None[int]()
	}
	return mo.Some(idx)
}
