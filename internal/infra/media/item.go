package media

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lyricbox/internal/app/playback"
)

// ErrNotReady is returned by controls invoked before the item is decoded.
var ErrNotReady = errors.New("media item is not ready")

// decodeFunc turns encoded bytes into a seekable stream.
type decodeFunc func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// item is one media session: fetched bytes, decoded stream and its route to the output.
type item struct {
	out        output
	sampleRate beep.SampleRate
	quality    int

	loaded    chan error
	buffering chan playback.Buffered
	finished  chan struct{}

	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	attached bool   // ctrl is currently mixed into the output
	playID   uint64 // identifies the current attachment
	closed   bool
}

func newItem(out output, sampleRate beep.SampleRate, quality int) *item {
	return &item{
		out:        out,
		sampleRate: sampleRate,
		quality:    quality,
		loaded:     make(chan error, 1),
		buffering:  make(chan playback.Buffered, 16),
		finished:   make(chan struct{}, 1),
	}
}

// load fetches and decodes the media, then signals readiness exactly once.
func (it *item) load(ctx context.Context, fetcher *Fetcher, decode decodeFunc, locator string) {
	data, err := fetcher.Fetch(ctx, locator, func(received, total int64) {
		select {
		case it.buffering <- playback.Buffered{Received: received, Total: total}:
		default:
			// The engine only needs the latest value.
		}
	})
	close(it.buffering)
	if err != nil {
		it.loaded <- err
		return
	}

	streamer, format, err := decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		it.loaded <- errors.Wrap(err, "failed to decode media")
		return
	}

	it.mu.Lock()
	if it.closed {
		it.mu.Unlock()
		streamer.Close()
		it.loaded <- errors.New("media item closed while loading")
		return
	}
	it.streamer = streamer
	it.format = format
	resampled := beep.Resample(it.quality, format.SampleRate, it.sampleRate, streamer)
	it.ctrl = &beep.Ctrl{Streamer: resampled, Paused: true}
	it.mu.Unlock()

	zlog.Debug().Msgf("media: decoded: locator=%s bytes=%d sample_rate=%d", locator, len(data), format.SampleRate)
	it.loaded <- nil
}

func (it *item) Loaded() <-chan error                { return it.loaded }
func (it *item) Buffering() <-chan playback.Buffered { return it.buffering }
func (it *item) Finished() <-chan struct{}           { return it.finished }

func (it *item) Duration() float64 {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.streamer == nil {
		return 0
	}
	return it.format.SampleRate.D(it.streamer.Len()).Seconds()
}

func (it *item) Position() float64 {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.streamer == nil {
		return 0
	}
	it.out.lock()
	pos := it.streamer.Position()
	it.out.unlock()
	return it.format.SampleRate.D(pos).Seconds()
}

func (it *item) Seek(seconds float64) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.streamer == nil {
		return ErrNotReady
	}
	n := it.format.SampleRate.N(secondsToDuration(seconds))
	if n >= it.streamer.Len() {
		n = it.streamer.Len() - 1
	}
	if n < 0 {
		n = 0
	}

	it.out.lock()
	defer it.out.unlock()
	if err := it.streamer.Seek(n); err != nil {
		return errors.Wrap(err, "failed to seek")
	}
	return nil
}

// Play resumes output, re-attaching the stream when a previous run reached its end.
func (it *item) Play() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.ctrl == nil || it.closed {
		return ErrNotReady
	}

	if !it.attached {
		it.playID++
		id := it.playID
		it.out.lock()
		it.ctrl.Paused = false
		it.out.unlock()
		if err := it.out.play(beep.Seq(it.ctrl, beep.Callback(func() {
			// Runs inside the output's stream loop, which must not be blocked.
			go it.onEnd(id)
		}))); err != nil {
			return err
		}
		it.attached = true
		return nil
	}

	it.out.lock()
	it.ctrl.Paused = false
	it.out.unlock()
	return nil
}

func (it *item) Pause() {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.ctrl == nil {
		return
	}
	it.out.lock()
	it.ctrl.Paused = true
	it.out.unlock()
}

func (it *item) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return nil
	}
	it.closed = true

	if it.ctrl != nil {
		// A nil streamer ends the sequence, which detaches it from the output.
		it.out.lock()
		it.ctrl.Paused = true
		it.ctrl.Streamer = nil
		it.out.unlock()
	}
	if it.streamer != nil {
		err := it.streamer.Close()
		it.streamer = nil
		if err != nil {
			return errors.Wrap(err, "failed to close stream")
		}
	}
	return nil
}

func (it *item) onEnd(id uint64) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed || id != it.playID {
		return
	}
	it.attached = false

	select {
	case it.finished <- struct{}{}:
	default:
	}
}

var _ playback.Item = (*item)(nil)

// decodeMP3 is the default decoder.
func decodeMP3(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	return mp3.Decode(rc)
}
