package playback

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/lyricbox/internal/domain/progress"
)

// DefaultSampleInterval is the playback progress sampling cadence.
const DefaultSampleInterval = 200 * time.Millisecond

// Config holds engine configuration.
type Config struct {
	SampleInterval time.Duration // Playback progress sampling cadence
}

// PrepareOption configures Prepare.
type PrepareOption func(*prepareOptions)

type prepareOptions struct {
	durationHint float64
}

// WithDurationHint sets the expected item length (seconds), used to express
// buffering progress in seconds before the item has been decoded.
func WithDurationHint(seconds float64) PrepareOption {
	return func(o *prepareOptions) {
		o.durationHint = seconds
	}
}

// Engine owns one media session and translates primitive intents into session calls.
// The session is replaced atomically by Prepare and never leaves the engine.
type Engine struct {
	mu sync.Mutex

	loader Loader
	config Config

	// Current item
	item         Item
	itemCancel   context.CancelFunc
	itemDone     chan struct{} // Closed when the item is superseded
	generation   uint64
	ready        bool
	durationHint float64

	// Buffering
	buffered   progress.TimeProgress
	bufferDone bool

	state State

	// Item-bound subscribers
	bufferSubs fanout[progress.TimeProgress]
	endSubs    fanout[struct{}]

	// Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates a new playback engine.
func NewEngine(loader Loader, config Config) *Engine {
	if config.SampleInterval <= 0 {
		config.SampleInterval = DefaultSampleInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		loader:     loader,
		config:     config,
		state:      StateStopped,
		bufferSubs: newFanout[progress.TimeProgress](),
		endSubs:    newFanout[struct{}](),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Prepare tears down the current item and starts loading locator.
// Readiness is signaled later; a latched play intent survives, any other state becomes stopped.
func (e *Engine) Prepare(locator string, opts ...PrepareOption) {
	var o prepareOptions
	for _, opt := range opts {
		opt(&o)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardownLocked()

	e.generation++
	gen := e.generation
	ctx, cancel := context.WithCancel(e.ctx)
	e.itemCancel = cancel
	e.itemDone = make(chan struct{})
	e.ready = false
	e.durationHint = o.durationHint
	e.buffered = progress.Zero()
	e.bufferDone = false

	if e.state != StatePlaying {
		e.state = StateStopped
	}

	zlog.Debug().Msgf("playback: preparing item: generation=%d locator=%s hint=%.1fs", gen, locator, o.durationHint)

	item := e.loader.Load(ctx, locator)
	e.item = item
	go e.watch(ctx, gen, item)
}

// Play requests playback. If the item is not ready yet the intent is latched
// and applied on readiness. Idempotent while playing.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePlaying {
		return
	}
	e.state = StatePlaying

	if e.item != nil && e.ready {
		e.startLocked()
	} else {
		zlog.Debug().Msg("playback: play latched until item is ready")
	}
}

// Pause stops playback immediately. Always succeeds.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StatePaused
	if e.item != nil && e.ready {
		e.item.Pause()
	}
}

// Seek jumps to fraction of the item duration. Fraction is clamped to [0,1].
// The returned value is an estimate; the settled position arrives through the sampler.
func (e *Engine) Seek(fraction float64) progress.TimeProgress {
	e.mu.Lock()
	defer e.mu.Unlock()

	duration, ok := e.durationLocked()
	if !ok {
		return progress.Zero()
	}
	if fraction != fraction { // NaN
		fraction = 0
	}
	return e.seekLocked(lo.Clamp(fraction, 0, 1)*duration, duration)
}

// SeekTime jumps to seconds, clamped to [0, duration].
func (e *Engine) SeekTime(seconds float64) progress.TimeProgress {
	e.mu.Lock()
	defer e.mu.Unlock()

	duration, ok := e.durationLocked()
	if !ok {
		return progress.Zero()
	}
	if seconds != seconds { // NaN
		seconds = 0
	}
	return e.seekLocked(lo.Clamp(seconds, 0, duration), duration)
}

func (e *Engine) seekLocked(seconds, duration float64) progress.TimeProgress {
	if err := e.item.Seek(seconds); err != nil {
		zlog.Warn().Msgf("playback: seek failed: position=%.3f error=%v", seconds, err)
	}
	return progress.New(seconds, duration)
}

// State returns the current player state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentTime returns the current position, or the zero value when nothing is loaded.
func (e *Engine) CurrentTime() progress.TimeProgress {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, _ := e.currentLocked()
	return p
}

// BufferProgress subscribes to buffering progress of the current item.
// The last known value is replayed; the subscription completes once buffering is finished.
func (e *Engine) BufferProgress() *Subscription[progress.TimeProgress] {
	sub, ch := NewSubscription[progress.TimeProgress](16)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item == nil {
		close(ch)
		return sub
	}
	if e.buffered.Total > 0 {
		ch <- e.buffered
	}
	if e.bufferDone {
		close(ch)
		return sub
	}
	e.bufferSubs.add(sub, ch)
	go e.release(sub, e.itemDone, func() { e.bufferSubs.remove(sub) })
	return sub
}

// EndOfMedia subscribes to the next end of the current item. It fires at most once.
func (e *Engine) EndOfMedia() *Subscription[struct{}] {
	sub, ch := NewSubscription[struct{}](1)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item == nil {
		close(ch)
		return sub
	}
	e.endSubs.add(sub, ch)
	go e.release(sub, e.itemDone, func() { e.endSubs.remove(sub) })
	return sub
}

// PlaybackProgress samples the playback position every SampleInterval after an
// initial delay. Samples are only produced while a ready item exists.
func (e *Engine) PlaybackProgress(delay time.Duration) *Subscription[progress.TimeProgress] {
	sub, ch := NewSubscription[progress.TimeProgress](1)
	go e.sample(sub, ch, delay)
	return sub
}

// Close releases the current item and stops every producer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardownLocked()
	e.generation++
	e.item = nil
	e.state = StateStopped
	e.cancel()
}

// sample runs the periodic playback progress producer.
func (e *Engine) sample(sub *Subscription[progress.TimeProgress], ch chan<- progress.TimeProgress, delay time.Duration) {
	defer close(ch)

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-sub.Stopped():
			return
		case <-e.ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(e.config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Stopped():
			return
		case <-e.ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		p, ok := e.currentLocked()
		e.mu.Unlock()
		if !ok {
			continue
		}

		select {
		case ch <- p:
		default:
			// Consumer is behind; this sample is stale by the next tick anyway.
		}
	}
}

// watch forwards item signals into engine state. It exits when the item is superseded.
func (e *Engine) watch(ctx context.Context, gen uint64, item Item) {
	buffering := item.Buffering()
	loaded := item.Loaded()
	finished := item.Finished()

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-buffering:
			if !ok {
				buffering = nil
				continue
			}
			e.onBuffered(gen, b)
		case err := <-loaded:
			loaded = nil
			e.onLoaded(gen, err)
		case <-finished:
			e.onFinished(gen)
		}
	}
}

func (e *Engine) onBuffered(gen uint64, b Buffered) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.bufferDone || b.Total <= 0 {
		return
	}

	total := e.durationHint
	if e.ready {
		total = e.item.Duration()
	}
	if total <= 0 {
		return
	}

	fraction := lo.Clamp(float64(b.Received)/float64(b.Total), 0, 1)
	current := fraction * total
	if b.Received < b.Total && current >= total {
		current = total * 0.999
	}
	e.publishBufferedLocked(progress.New(current, total))
}

func (e *Engine) onLoaded(gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}

	if err != nil {
		zlog.Warn().Msgf("playback: failed to load item: generation=%d error=%v", gen, err)
		e.bufferDone = true
		e.bufferSubs.closeAll()
		return
	}

	e.ready = true
	duration := e.item.Duration()
	zlog.Debug().Msgf("playback: item ready: generation=%d duration=%.1fs", gen, duration)

	// Loading is complete, so buffering is finished regardless of what was reported so far.
	// The decoded length replaces the hint; a longer hint must not carry Current past Total.
	if e.buffered.Current > duration {
		e.buffered = progress.Zero()
	}
	e.publishBufferedLocked(progress.New(duration, duration))

	if e.state == StatePlaying {
		e.startLocked()
	}
}

func (e *Engine) onFinished(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}

	zlog.Debug().Msgf("playback: reached end of item: generation=%d", gen)
	e.endSubs.send(struct{}{})
	e.endSubs.closeAll()
}

// publishBufferedLocked delivers p if it does not move backwards.
// Must be called with lock held.
func (e *Engine) publishBufferedLocked(p progress.TimeProgress) {
	if e.bufferDone || p.Current < e.buffered.Current {
		return
	}
	e.buffered = p
	e.bufferSubs.send(p)
	if p.IsFinished() {
		e.bufferDone = true
		e.bufferSubs.closeAll()
	}
}

// startLocked starts output and activates the audio route.
// Must be called with lock held and a ready item.
func (e *Engine) startLocked() {
	if err := e.item.Play(); err != nil {
		zlog.Warn().Msgf("playback: failed to start output: %v", err)
	}
}

// currentLocked returns the position of a ready item.
// Must be called with lock held.
func (e *Engine) currentLocked() (progress.TimeProgress, bool) {
	if e.item == nil || !e.ready {
		return progress.Zero(), false
	}
	return progress.New(e.item.Position(), e.item.Duration()), true
}

// durationLocked returns the duration of a ready item.
// Must be called with lock held.
func (e *Engine) durationLocked() (float64, bool) {
	if e.item == nil || !e.ready {
		return 0, false
	}
	d := e.item.Duration()
	return d, d > 0
}

// teardownLocked invalidates the current item and its observers.
// Must be called with lock held.
func (e *Engine) teardownLocked() {
	if e.itemCancel != nil {
		e.itemCancel()
		e.itemCancel = nil
	}
	if e.itemDone != nil {
		close(e.itemDone)
		e.itemDone = nil
	}
	e.bufferSubs.closeAll()
	e.endSubs.closeAll()

	if e.item != nil {
		if err := e.item.Close(); err != nil {
			zlog.Warn().Msgf("playback: failed to close item: %v", err)
		}
	}
	e.ready = false
}

// release unregisters an item-bound subscriber once it is cancelled or its item is superseded.
func (e *Engine) release(stopper interface{ Stopped() <-chan struct{} }, itemDone <-chan struct{}, remove func()) {
	select {
	case <-stopper.Stopped():
	case <-itemDone:
		return
	case <-e.ctx.Done():
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	remove()
}
