// Package lyricsview derives the lyric highlight and scroll target from playback time.
package lyricsview

import (
	"sync"

	"github.com/samber/mo"

	"github.com/osa030/lyricbox/internal/domain/lyrics"
)

// Highlight is what the display renders for one playback time.
type Highlight struct {
	Line     mo.Option[int]          // Active line index
	Range    mo.Option[lyrics.Range] // Rendered range of the active line
	ScrollTo mo.Option[int]          // Rune offset to scroll to; only while tracking
}

// Equal reports whether h and o render identically.
func (h Highlight) Equal(o Highlight) bool {
	return h.Line.IsPresent() == o.Line.IsPresent() &&
		h.Line.OrEmpty() == o.Line.OrEmpty() &&
		h.Range.IsPresent() == o.Range.IsPresent() &&
		h.Range.OrEmpty() == o.Range.OrEmpty() &&
		h.ScrollTo.IsPresent() == o.ScrollTo.IsPresent() &&
		h.ScrollTo.OrEmpty() == o.ScrollTo.OrEmpty()
}

// Compute returns the highlight for time t. It has no side effects.
func Compute(doc *lyrics.Document, t float64, tracking bool) Highlight {
	index, ok := doc.ActiveLine(t).Get()
	if !ok {
		return Highlight{}
	}
	line, ok := doc.Line(index)
	if !ok {
		return Highlight{}
	}

	h := Highlight{
		Line:  mo.Some(index),
		Range: mo.Some(line.Range),
	}
	if tracking {
		h.ScrollTo = mo.Some(line.Range.Start)
	}
	return h
}

// Tracker keeps the displayed document and the last computed highlight.
type Tracker struct {
	mu       sync.Mutex
	doc      *lyrics.Document
	tracking bool
	time     float64
	current  Highlight
}

// NewTracker creates a tracker for doc.
func NewTracker(doc *lyrics.Document, tracking bool) *Tracker {
	return &Tracker{
		doc:      doc,
		tracking: tracking,
	}
}

// SetDocument replaces the document. The previous document and its memo are dropped.
func (t *Tracker) SetDocument(doc *lyrics.Document) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.doc = doc
	t.time = 0
	t.current = Highlight{}
}

// Document returns the displayed document.
func (t *Tracker) Document() *lyrics.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

// Tracking reports whether the view follows playback.
func (t *Tracker) Tracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracking
}

// ToggleTracking flips auto-scroll and returns the new setting.
// The highlight is recomputed for the last known time.
func (t *Tracker) ToggleTracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracking = !t.tracking
	if t.current.Line.IsPresent() {
		t.current = Compute(t.doc, t.time, t.tracking)
	}
	return t.tracking
}

// Update moves to playback time and reports whether the highlight changed.
func (t *Tracker) Update(time float64) (Highlight, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.time = time
	next := Compute(t.doc, time, t.tracking)
	changed := !next.Equal(t.current)
	t.current = next
	return next, changed
}

// Highlight returns the last computed highlight.
func (t *Tracker) Highlight() Highlight {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Tap maps a rune offset in the rendered text to the start time of its line.
func (t *Tracker) Tap(offset int) mo.Option[float64] {
	t.mu.Lock()
	defer t.mu.Unlock()

	index, ok := t.doc.LineAt(offset).Get()
	if !ok {
		return mo.None[float64]()
	}
	return t.lineTimeLocked(index)
}

// TapLine returns the start time of line index.
func (t *Tracker) TapLine(index int) mo.Option[float64] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lineTimeLocked(index)
}

func (t *Tracker) lineTimeLocked(index int) mo.Option[float64] {
	line, ok := t.doc.Line(index)
	if !ok {
		return mo.None[float64]()
	}
	return mo.Some(line.Time)
}
