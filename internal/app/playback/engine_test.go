package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/lyricbox/internal/domain/progress"
)

type fakeItem struct {
	mu sync.Mutex

	loaded    chan error
	buffering chan Buffered
	finished  chan struct{}

	duration   float64
	position   float64
	playCalls  int
	pauseCalls int
	seeks      []float64
	closed     bool
}

func newFakeItem(duration float64) *fakeItem {
	return &fakeItem{
		loaded:    make(chan error, 1),
		buffering: make(chan Buffered, 16),
		finished:  make(chan struct{}, 1),
		duration:  duration,
	}
}

func (f *fakeItem) Loaded() <-chan error       { return f.loaded }
func (f *fakeItem) Buffering() <-chan Buffered { return f.buffering }
func (f *fakeItem) Finished() <-chan struct{}  { return f.finished }

func (f *fakeItem) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeItem) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeItem) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
	f.position = seconds
	return nil
}

func (f *fakeItem) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playCalls++
	return nil
}

func (f *fakeItem) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls++
}

func (f *fakeItem) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeItem) plays() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playCalls
}

func (f *fakeItem) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeLoader struct {
	mu       sync.Mutex
	duration float64
	items    []*fakeItem
	locators []string
}

func (l *fakeLoader) Load(ctx context.Context, locator string) Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	item := newFakeItem(l.duration)
	l.items = append(l.items, item)
	l.locators = append(l.locators, locator)
	return item
}

func (l *fakeLoader) item(i int) *fakeItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[i]
}

func (l *fakeLoader) last() *fakeItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[len(l.items)-1]
}

func newTestEngine(t *testing.T) (*Engine, *fakeLoader) {
	t.Helper()
	loader := &fakeLoader{duration: 198}
	engine := NewEngine(loader, Config{SampleInterval: 10 * time.Millisecond})
	t.Cleanup(engine.Close)
	return engine, loader
}

// prepareReady prepares an item and waits until the engine has seen it become ready.
func prepareReady(t *testing.T, engine *Engine, loader *fakeLoader) *fakeItem {
	t.Helper()
	engine.Prepare("music.mp3")
	item := loader.last()
	item.loaded <- nil
	require.Eventually(t, func() bool {
		return !engine.CurrentTime().IsZero()
	}, time.Second, 5*time.Millisecond)
	return item
}

func receive[T any](t *testing.T, ch <-chan T) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
	var zero T
	return zero, false
}

func TestEngine_NothingLoaded(t *testing.T) {
	engine, _ := newTestEngine(t)

	assert.Equal(t, progress.Zero(), engine.Seek(0.5))
	assert.Equal(t, progress.Zero(), engine.SeekTime(10))
	assert.Equal(t, progress.Zero(), engine.CurrentTime())
	assert.Equal(t, StateStopped, engine.State())

	_, ok := receive(t, engine.BufferProgress().C)
	assert.False(t, ok, "buffer subscription completes immediately without an item")
	_, ok = receive(t, engine.EndOfMedia().C)
	assert.False(t, ok, "end subscription completes immediately without an item")
}

func TestEngine_PlayLatchedUntilReady(t *testing.T) {
	engine, loader := newTestEngine(t)

	engine.Prepare("music.mp3")
	engine.Play()
	item := loader.item(0)

	assert.Equal(t, StatePlaying, engine.State())
	assert.Equal(t, 0, item.plays(), "output must not start before readiness")
	assert.Equal(t, progress.Zero(), engine.Seek(0.5), "seek before readiness has nothing to act on")

	item.loaded <- nil
	require.Eventually(t, func() bool { return item.plays() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEngine_PlayIsIdempotent(t *testing.T) {
	engine, loader := newTestEngine(t)
	item := prepareReady(t, engine, loader)

	engine.Play()
	engine.Play()

	assert.Equal(t, 1, item.plays())
	assert.Equal(t, StatePlaying, engine.State())
}

func TestEngine_Pause(t *testing.T) {
	engine, loader := newTestEngine(t)
	item := prepareReady(t, engine, loader)

	engine.Play()
	engine.Pause()
	engine.Pause()

	assert.Equal(t, StatePaused, engine.State())
	item.mu.Lock()
	defer item.mu.Unlock()
	assert.Equal(t, 2, item.pauseCalls)
}

func TestEngine_Seek(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		expected progress.TimeProgress
	}{
		{name: "half", fraction: 0.5, expected: progress.New(99, 198)},
		{name: "start", fraction: 0, expected: progress.New(0, 198)},
		{name: "above one clamps", fraction: 1.5, expected: progress.New(198, 198)},
		{name: "negative clamps", fraction: -0.2, expected: progress.New(0, 198)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, loader := newTestEngine(t)
			item := prepareReady(t, engine, loader)

			assert.Equal(t, tt.expected, engine.Seek(tt.fraction))
			item.mu.Lock()
			assert.Equal(t, []float64{tt.expected.Current}, item.seeks)
			item.mu.Unlock()
		})
	}
}

func TestEngine_SeekTime(t *testing.T) {
	engine, loader := newTestEngine(t)
	prepareReady(t, engine, loader)

	assert.Equal(t, progress.New(85.3, 198), engine.SeekTime(85.3))
	assert.Equal(t, progress.New(198, 198), engine.SeekTime(500))
	assert.Equal(t, progress.New(0, 198), engine.SeekTime(-3))
	assert.Equal(t, progress.New(0, 198), engine.CurrentTime())
}

func TestEngine_BufferProgressWithHint(t *testing.T) {
	engine, loader := newTestEngine(t)

	engine.Prepare("music.mp3", WithDurationHint(200))
	sub := engine.BufferProgress()
	defer sub.Cancel()
	item := loader.item(0)

	item.buffering <- Buffered{Received: 50, Total: 100}
	item.buffering <- Buffered{Received: 25, Total: 100} // never moves backwards
	item.buffering <- Buffered{Received: 100, Total: 100}

	v, ok := receive(t, sub.C)
	require.True(t, ok)
	assert.Equal(t, progress.New(100, 200), v)

	v, ok = receive(t, sub.C)
	require.True(t, ok)
	assert.Equal(t, progress.New(200, 200), v)
	assert.True(t, v.IsFinished())

	_, ok = receive(t, sub.C)
	assert.False(t, ok, "subscription completes once buffering is finished")
}

func TestEngine_BufferProgressHintLongerThanMedia(t *testing.T) {
	engine, loader := newTestEngine(t)

	engine.Prepare("music.mp3", WithDurationHint(250))
	sub := engine.BufferProgress()
	defer sub.Cancel()
	item := loader.item(0)

	item.buffering <- Buffered{Received: 90, Total: 100}
	v, ok := receive(t, sub.C)
	require.True(t, ok)
	assert.Equal(t, progress.New(225, 250), v)

	// The decoded item is only 198s long.
	item.loaded <- nil
	v, ok = receive(t, sub.C)
	require.True(t, ok)
	assert.Equal(t, progress.New(198, 198), v)
	assert.LessOrEqual(t, v.Current, v.Total)

	_, ok = receive(t, sub.C)
	assert.False(t, ok)
}

func TestEngine_BufferProgressCompletesOnReady(t *testing.T) {
	engine, loader := newTestEngine(t)

	engine.Prepare("music.mp3")
	sub := engine.BufferProgress()
	item := loader.item(0)

	// Without a hint nothing can be expressed in seconds before readiness.
	item.buffering <- Buffered{Received: 10, Total: 100}
	item.loaded <- nil

	v, ok := receive(t, sub.C)
	require.True(t, ok)
	assert.Equal(t, progress.New(198, 198), v)

	_, ok = receive(t, sub.C)
	assert.False(t, ok)

	// Late subscribers get the final value replayed and complete immediately.
	late := engine.BufferProgress()
	v, ok = receive(t, late.C)
	require.True(t, ok)
	assert.Equal(t, progress.New(198, 198), v)
	_, ok = receive(t, late.C)
	assert.False(t, ok)
}

func TestEngine_EndOfMediaFiresOnce(t *testing.T) {
	engine, loader := newTestEngine(t)
	item := prepareReady(t, engine, loader)

	first := engine.EndOfMedia()
	item.finished <- struct{}{}

	_, ok := receive(t, first.C)
	assert.True(t, ok)
	_, ok = receive(t, first.C)
	assert.False(t, ok, "end-of-media is one-shot")

	second := engine.EndOfMedia()
	defer second.Cancel()
	select {
	case <-second.C:
		t.Fatal("a new subscription must not see a past end")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_CancelEndOfMedia(t *testing.T) {
	engine, loader := newTestEngine(t)
	prepareReady(t, engine, loader)

	sub := engine.EndOfMedia()
	sub.Cancel()
	sub.Cancel()

	_, ok := receive(t, sub.C)
	assert.False(t, ok)
	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, 0, engine.endSubs.len())
}

func TestEngine_PrepareTearsDownPreviousItem(t *testing.T) {
	engine, loader := newTestEngine(t)
	first := prepareReady(t, engine, loader)
	engine.Pause()

	buffer := engine.BufferProgress()
	end := engine.EndOfMedia()

	engine.Prepare("next.mp3")

	assert.True(t, first.isClosed())
	assert.Equal(t, StateStopped, engine.State(), "paused becomes stopped for a new item")
	assert.Equal(t, progress.Zero(), engine.CurrentTime())

	// The first buffer subscription already replayed its final value.
	for range buffer.C {
	}
	_, ok := receive(t, end.C)
	assert.False(t, ok, "subscriptions of a superseded item are completed")

	// Signals from the superseded item are ignored.
	first.finished <- struct{}{}
	assert.Equal(t, []string{"music.mp3", "next.mp3"}, loader.locators)
}

func TestEngine_PrepareKeepsLatchedPlay(t *testing.T) {
	engine, loader := newTestEngine(t)

	engine.Play()
	engine.Prepare("music.mp3")
	assert.Equal(t, StatePlaying, engine.State())

	item := loader.item(0)
	item.loaded <- nil
	require.Eventually(t, func() bool { return item.plays() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEngine_PlaybackProgress(t *testing.T) {
	engine, loader := newTestEngine(t)

	engine.Prepare("music.mp3")
	sub := engine.PlaybackProgress(0)

	select {
	case <-sub.C:
		t.Fatal("no samples before the item is ready")
	case <-time.After(50 * time.Millisecond):
	}

	item := loader.item(0)
	item.mu.Lock()
	item.position = 42
	item.mu.Unlock()
	item.loaded <- nil

	v, ok := receive(t, sub.C)
	require.True(t, ok)
	assert.Equal(t, progress.New(42, 198), v)

	sub.Cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.C:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_PlaybackProgressDelay(t *testing.T) {
	engine, loader := newTestEngine(t)
	prepareReady(t, engine, loader)

	start := time.Now()
	sub := engine.PlaybackProgress(150 * time.Millisecond)
	defer sub.Cancel()

	_, ok := receive(t, sub.C)
	require.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestState_String(t *testing.T) {
	for _, s := range []State{StateStopped, StatePlaying, StatePaused} {
		parsed, ok := ParseState(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "unknown", State(99).String())
	_, ok := ParseState("rewinding")
	assert.False(t, ok)
}
