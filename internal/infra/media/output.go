package media

import "github.com/gopxl/beep/v2"

// output is the audio route items are played through.
// lock/unlock guard every mutation of a streamer that is attached to the output.
type output interface {
	play(s beep.Streamer) error
	lock()
	unlock()
	close()
}
