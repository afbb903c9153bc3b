package coordinator

import (
	"github.com/osa030/lyricbox/internal/domain/progress"
	"github.com/osa030/lyricbox/internal/domain/track"
)

// event is one entry of the serialized intent stream.
type event interface {
	isEvent()
}

// User intents
type (
	fetchIntent        struct{}
	playIntent         struct{}
	pauseIntent        struct{}
	beginSeekingIntent struct{}
	endSeekingIntent   struct{}
	seekIntent         struct{ fraction float64 }
	seekTimeIntent     struct{ seconds float64 }
)

// Collaborator results, tagged with the generation they belong to.
type (
	fetchResult struct {
		gen   uint64
		track track.Track
		err   error
	}
	bufferSample struct {
		gen   uint64
		value progress.TimeProgress
	}
	playbackSample struct {
		gen   uint64
		value progress.TimeProgress
	}
	endOfMedia struct {
		gen uint64
	}
)

func (fetchIntent) isEvent()        {}
func (playIntent) isEvent()         {}
func (pauseIntent) isEvent()        {}
func (beginSeekingIntent) isEvent() {}
func (endSeekingIntent) isEvent()   {}
func (seekIntent) isEvent()         {}
func (seekTimeIntent) isEvent()     {}
func (fetchResult) isEvent()        {}
func (bufferSample) isEvent()       {}
func (playbackSample) isEvent()     {}
func (endOfMedia) isEvent()         {}
