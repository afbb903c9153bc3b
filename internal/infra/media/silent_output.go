//go:build !((linux && cgo) || windows || darwin)

package media

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	zlog "github.com/rs/zerolog/log"
)

// AudioAvailable indicates whether audio is routed to a sound device in this build.
// Without cgo on linux there is no device; streams are consumed silently in real time.
const AudioAvailable = false

// silentOutput drains a mixer at the real-time pace so that positions,
// end-of-media and seeking behave as with a sound device.
type silentOutput struct {
	mu         sync.Mutex
	mixer      beep.Mixer
	sampleRate beep.SampleRate
	buffer     time.Duration
	started    bool
	done       chan struct{}
	closeOnce  sync.Once
}

func newOutput(sampleRate beep.SampleRate, buffer time.Duration) output {
	return &silentOutput{
		sampleRate: sampleRate,
		buffer:     buffer,
		done:       make(chan struct{}),
	}
}

func (o *silentOutput) play(s beep.Streamer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.mixer.Add(s)
	if !o.started {
		o.started = true
		zlog.Info().Msgf("media: no sound device, using silent output: sample_rate=%d", o.sampleRate)
		go o.run()
	}
	return nil
}

func (o *silentOutput) run() {
	samples := make([][2]float64, o.sampleRate.N(o.buffer))
	ticker := time.NewTicker(o.buffer)
	defer ticker.Stop()

	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
		}
		o.mu.Lock()
		o.mixer.Stream(samples)
		o.mu.Unlock()
	}
}

func (o *silentOutput) lock()   { o.mu.Lock() }
func (o *silentOutput) unlock() { o.mu.Unlock() }

func (o *silentOutput) close() {
	o.closeOnce.Do(func() {
		close(o.done)
	})
}
