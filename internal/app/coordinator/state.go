package coordinator

import (
	"github.com/samber/mo"

	"github.com/osa030/lyricbox/internal/app/playback"
	"github.com/osa030/lyricbox/internal/domain/progress"
	"github.com/osa030/lyricbox/internal/domain/track"
)

// ViewState is an immutable snapshot of everything the display needs.
// A new value is published on every mutation; consumers never modify it.
type ViewState struct {
	Track            mo.Option[track.Track]
	BufferProgress   mo.Option[progress.TimeProgress]
	PlaybackProgress mo.Option[progress.TimeProgress]
	PlayerState      playback.State
	IsLoading        bool
	IsSeeking        bool
	LoadError        string // Last fetch failure, empty when none
}

// HasFailed reports whether the last fetch failed and no retry succeeded yet.
func (s ViewState) HasFailed() bool {
	return s.LoadError != ""
}

// CurrentTime returns the playback position, or 0 when none is known.
func (s ViewState) CurrentTime() float64 {
	return s.PlaybackProgress.OrEmpty().Current
}
