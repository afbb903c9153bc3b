package playback

import "context"

// Buffered reports how much of an item's media has been loaded, in bytes.
type Buffered struct {
	Received int64
	Total    int64 // Total size, or <= 0 when unknown
}

// Item is one loaded media session. Only the Engine holds items.
type Item interface {
	// Loaded receives exactly one value: nil once the item is ready to play, or the load error.
	Loaded() <-chan error
	// Buffering emits loading progress and is closed when loading stops.
	Buffering() <-chan Buffered
	// Finished receives a value each time playback reaches the end of the item.
	Finished() <-chan struct{}

	// Duration returns the item length in seconds (0 until ready).
	Duration() float64
	// Position returns the playback position in seconds.
	Position() float64
	// Seek moves the playback position to seconds.
	Seek(seconds float64) error
	// Play starts or resumes output. Only called once the item is ready.
	Play() error
	// Pause stops output immediately.
	Pause()
	// Close releases the item. No signal is delivered after Close returns.
	Close() error
}

// Loader opens media items from locators.
type Loader interface {
	// Load starts loading locator in the background and returns immediately.
	Load(ctx context.Context, locator string) Item
}
