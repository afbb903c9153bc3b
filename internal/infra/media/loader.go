package media

import (
	"context"
	"math"
	"time"

	"github.com/creasty/defaults"
	"github.com/gopxl/beep/v2"

	"github.com/osa030/lyricbox/internal/app/playback"
)

// Config holds media configuration.
type Config struct {
	SampleRate      int           `default:"44100"`
	Buffer          time.Duration `default:"100ms"`
	ResampleQuality int           `default:"4"`
	HTTPTimeout     time.Duration `default:"30s"`
}

// Loader opens mp3 items and routes them to a single shared output.
type Loader struct {
	fetcher    *Fetcher
	decode     decodeFunc
	out        output
	sampleRate beep.SampleRate
	quality    int
}

// NewLoader creates a loader. Zero config fields take their defaults.
func NewLoader(cfg Config) (*Loader, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}
	sampleRate := beep.SampleRate(cfg.SampleRate)
	return &Loader{
		fetcher:    NewFetcher(cfg.HTTPTimeout),
		decode:     decodeMP3,
		out:        newOutput(sampleRate, cfg.Buffer),
		sampleRate: sampleRate,
		quality:    cfg.ResampleQuality,
	}, nil
}

// Load starts fetching and decoding locator in the background.
func (l *Loader) Load(ctx context.Context, locator string) playback.Item {
	it := newItem(l.out, l.sampleRate, l.quality)
	go it.load(ctx, l.fetcher, l.decode, locator)
	return it
}

// Close stops the shared output.
func (l *Loader) Close() {
	l.out.close()
}

func secondsToDuration(seconds float64) time.Duration {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
