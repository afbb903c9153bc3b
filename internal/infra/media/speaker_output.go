//go:build (linux && cgo) || windows || darwin

package media

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"
)

// AudioAvailable indicates whether audio is routed to a sound device in this build.
const AudioAvailable = true

// speakerOutput plays through the system sound device.
// The device is initialized on first use.
type speakerOutput struct {
	once       sync.Once
	err        error
	sampleRate beep.SampleRate
	buffer     time.Duration
}

func newOutput(sampleRate beep.SampleRate, buffer time.Duration) output {
	return &speakerOutput{
		sampleRate: sampleRate,
		buffer:     buffer,
	}
}

func (o *speakerOutput) play(s beep.Streamer) error {
	o.once.Do(func() {
		if err := speaker.Init(o.sampleRate, o.sampleRate.N(o.buffer)); err != nil {
			o.err = errors.Wrap(err, "failed to initialize speaker")
			return
		}
		zlog.Info().Msgf("media: speaker initialized: sample_rate=%d buffer=%s", o.sampleRate, o.buffer)
	})
	if o.err != nil {
		return o.err
	}
	speaker.Play(s)
	return nil
}

func (o *speakerOutput) lock()   { speaker.Lock() }
func (o *speakerOutput) unlock() { speaker.Unlock() }

func (o *speakerOutput) close() {
	if o.err == nil {
		speaker.Clear()
	}
}
