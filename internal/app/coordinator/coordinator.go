// Package coordinator serializes playback intents and publishes ViewState snapshots.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/mo"

	"github.com/osa030/lyricbox/internal/app/playback"
	"github.com/osa030/lyricbox/internal/domain/progress"
	"github.com/osa030/lyricbox/internal/domain/track"
)

// ErrClosed is returned for intents sent after Close.
var ErrClosed = errors.New("coordinator is closed")

// Engine is the playback engine the coordinator drives.
type Engine interface {
	Prepare(locator string, opts ...playback.PrepareOption)
	Play()
	Pause()
	Seek(fraction float64) progress.TimeProgress
	SeekTime(seconds float64) progress.TimeProgress
	State() playback.State
	BufferProgress() *playback.Subscription[progress.TimeProgress]
	PlaybackProgress(delay time.Duration) *playback.Subscription[progress.TimeProgress]
	EndOfMedia() *playback.Subscription[struct{}]
}

// Fetcher resolves the track to play.
type Fetcher interface {
	Fetch(ctx context.Context) (track.Track, error)
}

// Publisher receives every ViewState snapshot in order.
type Publisher interface {
	Publish(state ViewState)
}

// Config holds coordinator configuration.
type Config struct {
	ResubscribeDelay time.Duration               // Delay before the first honored sample after a drag or a load; 0 means none
	FetchTimeout     time.Duration `default:"15s"` // Upper bound for one fetch
	QueueSize        int           `default:"64"`  // Intent queue capacity
}

// Coordinator is the single owner of ViewState. Every intent and every
// collaborator result is applied on one goroutine in arrival order.
type Coordinator struct {
	engine    Engine
	fetcher   Fetcher
	publisher Publisher
	config    Config

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup

	// Latest snapshot for readers outside the loop
	mu      sync.RWMutex
	current ViewState

	// Owned by the loop goroutine
	state       ViewState
	fetchGen    uint64
	fetchCancel context.CancelFunc
	itemGen     uint64
	sampleGen   uint64
	bufferSub   *playback.Subscription[progress.TimeProgress]
	sampleSub   *playback.Subscription[progress.TimeProgress]
	endSub      *playback.Subscription[struct{}]
}

// New creates a coordinator and starts its loop.
func New(engine Engine, fetcher Fetcher, publisher Publisher, config Config) (*Coordinator, error) {
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set coordinator defaults")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		engine:    engine,
		fetcher:   fetcher,
		publisher: publisher,
		config:    config,
		events:    make(chan event, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.state.PlayerState = engine.State()
	c.current = c.state

	c.wg.Add(1)
	go c.run()
	return c, nil
}

// FetchTrack loads a new track. A fetch already in flight is abandoned.
func (c *Coordinator) FetchTrack() error { return c.send(fetchIntent{}) }

// Play starts playback. A no-op while already playing.
func (c *Coordinator) Play() error { return c.send(playIntent{}) }

// Pause pauses playback.
func (c *Coordinator) Pause() error { return c.send(pauseIntent{}) }

// BeginSeeking suppresses sampled progress while the user drags.
func (c *Coordinator) BeginSeeking() error { return c.send(beginSeekingIntent{}) }

// EndSeeking resumes sampled progress after a short delay.
func (c *Coordinator) EndSeeking() error { return c.send(endSeekingIntent{}) }

// Seek jumps to fraction of the track.
func (c *Coordinator) Seek(fraction float64) error { return c.send(seekIntent{fraction: fraction}) }

// SeekTime jumps to seconds into the track.
func (c *Coordinator) SeekTime(seconds float64) error {
	return c.send(seekTimeIntent{seconds: seconds})
}

// State returns the latest published snapshot.
func (c *Coordinator) State() ViewState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Close stops the loop and every subscription it holds. Safe to call more than once.
func (c *Coordinator) Close() {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
}

func (c *Coordinator) send(ev event) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// post delivers a collaborator result; it gives up once the coordinator is closed.
func (c *Coordinator) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	defer c.shutdown()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Coordinator) handle(ev event) {
	switch ev := ev.(type) {
	case fetchIntent:
		c.onFetch()
	case fetchResult:
		c.onFetchResult(ev)
	case playIntent:
		c.onPlay()
	case pauseIntent:
		c.engine.Pause()
		c.update(func(s *ViewState) { s.PlayerState = playback.StatePaused })
	case beginSeekingIntent:
		c.stopSampling()
		c.update(func(s *ViewState) { s.IsSeeking = true })
	case endSeekingIntent:
		c.update(func(s *ViewState) { s.IsSeeking = false })
		c.startSampling(c.config.ResubscribeDelay)
	case seekIntent:
		c.applySeek(c.engine.Seek(ev.fraction))
	case seekTimeIntent:
		c.applySeek(c.engine.SeekTime(ev.seconds))
	case bufferSample:
		if ev.gen != c.itemGen {
			return
		}
		c.update(func(s *ViewState) { s.BufferProgress = mo.Some(ev.value) })
	case playbackSample:
		c.onPlaybackSample(ev)
	case endOfMedia:
		c.onEndOfMedia(ev)
	default:
		zlog.Warn().Msgf("coordinator: unknown event: %T", ev)
	}
}

func (c *Coordinator) onFetch() {
	if c.fetchCancel != nil {
		c.fetchCancel()
	}
	c.fetchGen++
	gen := c.fetchGen
	ctx, cancel := context.WithTimeout(c.ctx, c.config.FetchTimeout)
	c.fetchCancel = cancel

	c.update(func(s *ViewState) {
		s.IsLoading = true
		s.LoadError = ""
	})

	zlog.Debug().Msgf("coordinator: fetching track: generation=%d", gen)
	go func() {
		defer cancel()
		tr, err := c.fetcher.Fetch(ctx)
		c.post(fetchResult{gen: gen, track: tr, err: err})
	}()
}

func (c *Coordinator) onFetchResult(ev fetchResult) {
	if ev.gen != c.fetchGen {
		zlog.Debug().Msgf("coordinator: discarding superseded fetch: generation=%d", ev.gen)
		return
	}
	c.fetchCancel = nil

	if ev.err != nil {
		// Loading stays on; only a new fetch intent clears it.
		zlog.Warn().Msgf("coordinator: failed to fetch track: %v", ev.err)
		c.update(func(s *ViewState) { s.LoadError = ev.err.Error() })
		return
	}

	zlog.Info().Msgf("coordinator: track fetched: title=%s singer=%s", ev.track.Title, ev.track.Singer)

	// Observers of the previous item go first so none of them can touch the new state.
	c.releaseItem()
	c.engine.Prepare(ev.track.MediaURL, playback.WithDurationHint(ev.track.DurationSeconds()))
	c.itemGen++

	c.update(func(s *ViewState) {
		s.Track = mo.Some(ev.track)
		s.BufferProgress = mo.None[progress.TimeProgress]()
		s.PlaybackProgress = mo.None[progress.TimeProgress]()
		s.PlayerState = c.engine.State()
	})
	c.update(func(s *ViewState) { s.IsLoading = false })

	c.observeBuffering()
	if c.state.PlayerState == playback.StatePlaying {
		c.observeEnd()
	}
	if !c.state.IsSeeking {
		c.startSampling(c.config.ResubscribeDelay)
	}
}

func (c *Coordinator) onPlay() {
	if c.state.PlayerState == playback.StatePlaying {
		return
	}
	c.engine.Play()
	c.observeEnd()
	if !c.state.IsSeeking {
		c.startSampling(0)
	}
	c.update(func(s *ViewState) { s.PlayerState = playback.StatePlaying })
}

func (c *Coordinator) onPlaybackSample(ev playbackSample) {
	if ev.gen != c.sampleGen || c.state.IsSeeking || ev.value.IsZero() {
		return
	}
	if c.state.PlaybackProgress.OrEmpty() == ev.value && c.state.PlaybackProgress.IsPresent() {
		return
	}
	c.update(func(s *ViewState) { s.PlaybackProgress = mo.Some(ev.value) })
}

func (c *Coordinator) onEndOfMedia(ev endOfMedia) {
	if ev.gen != c.itemGen {
		return
	}
	c.endSub.Cancel()
	c.endSub = nil

	p := c.engine.SeekTime(0)
	c.engine.Pause()
	if p.Total == 0 {
		p.Total = c.state.PlaybackProgress.OrEmpty().Total
	}
	zlog.Debug().Msg("coordinator: end of media, rewinding")

	c.update(func(s *ViewState) {
		s.PlayerState = playback.StatePaused
		s.PlaybackProgress = mo.Some(progress.New(0, p.Total))
	})
}

func (c *Coordinator) applySeek(p progress.TimeProgress) {
	if p.Total == 0 {
		// Nothing loaded
		return
	}
	c.update(func(s *ViewState) { s.PlaybackProgress = mo.Some(p) })
}

// update applies mutate to a copy of the state and publishes the result.
func (c *Coordinator) update(mutate func(s *ViewState)) {
	next := c.state
	mutate(&next)
	c.state = next

	c.mu.Lock()
	c.current = next
	c.mu.Unlock()

	c.publisher.Publish(next)
}

func (c *Coordinator) observeBuffering() {
	sub := c.engine.BufferProgress()
	c.bufferSub = sub
	gen := c.itemGen
	forward(c, sub, func(v progress.TimeProgress) event {
		return bufferSample{gen: gen, value: v}
	})
}

func (c *Coordinator) observeEnd() {
	c.endSub.Cancel()
	sub := c.engine.EndOfMedia()
	c.endSub = sub
	gen := c.itemGen
	forward(c, sub, func(struct{}) event {
		return endOfMedia{gen: gen}
	})
}

func (c *Coordinator) startSampling(delay time.Duration) {
	c.stopSampling()
	sub := c.engine.PlaybackProgress(delay)
	c.sampleSub = sub
	gen := c.sampleGen
	forward(c, sub, func(v progress.TimeProgress) event {
		return playbackSample{gen: gen, value: v}
	})
}

// stopSampling cancels the sampler; samples already in flight become stale.
func (c *Coordinator) stopSampling() {
	c.sampleSub.Cancel()
	c.sampleSub = nil
	c.sampleGen++
}

func (c *Coordinator) releaseItem() {
	c.bufferSub.Cancel()
	c.bufferSub = nil
	c.endSub.Cancel()
	c.endSub = nil
	c.stopSampling()
}

func (c *Coordinator) shutdown() {
	if c.fetchCancel != nil {
		c.fetchCancel()
	}
	c.releaseItem()
}

// forward relays a subscription into the intent stream until it completes.
func forward[T any](c *Coordinator, sub *playback.Subscription[T], wrap func(T) event) {
	go func() {
		for {
			select {
			case v, ok := <-sub.C:
				if !ok {
					return
				}
				c.post(wrap(v))
			case <-c.ctx.Done():
				sub.Cancel()
				return
			}
		}
	}()
}
