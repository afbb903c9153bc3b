// Package progress provides the TimeProgress value shared by buffering and playback signals.
package progress

import "github.com/samber/lo"

// TimeProgress is a position within a media item, in seconds.
// The zero value means nothing is loaded.
type TimeProgress struct {
	Current float64 // Current position (seconds)
	Total   float64 // Total duration (seconds)
}

// Zero returns the "nothing loaded" value.
func Zero() TimeProgress {
	return TimeProgress{}
}

// New creates a TimeProgress.
func New(current, total float64) TimeProgress {
	return TimeProgress{Current: current, Total: total}
}

// Progress returns Current/Total clamped to [0,1].
// A zero total yields 0.
func (p TimeProgress) Progress() float64 {
	if p.Total == 0 {
		return 0
	}
	ratio := p.Current / p.Total
	if ratio != ratio { // NaN
		return 0
	}
	return lo.Clamp(ratio, 0, 1)
}

// IsFinished reports whether Current has reached Total.
func (p TimeProgress) IsFinished() bool {
	return p.Current >= p.Total
}

// IsZero reports whether p carries no loaded item.
func (p TimeProgress) IsZero() bool {
	return p.Current == 0 && p.Total == 0
}
