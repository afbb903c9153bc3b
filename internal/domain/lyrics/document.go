package lyrics

import (
	"math"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Document is a parsed lyric text with a memoized time lookup.
// The memo lives as long as the document; replacing the document drops it.
type Document struct {
	lines []Line
	index *TimeIndex
	text  string

	memoMu sync.Mutex
	memo   map[float64]mo.Option[int]
}

// Parse parses raw timed text. It never fails: malformed cues become zero-time lines.
func Parse(raw string) *Document {
	lines := parseLines(raw)

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Rendered())
	}

	return &Document{
		lines: lines,
		index: NewTimeIndex(lo.Map(lines, func(l Line, _ int) float64 { return l.Time })),
		text:  b.String(),
		memo:  make(map[float64]mo.Option[int]),
	}
}

// Len returns the number of lines.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.lines)
}

// Lines returns a copy of the lines in source order.
func (d *Document) Lines() []Line {
	if d == nil {
		return nil
	}
	result := make([]Line, len(d.lines))
	copy(result, d.lines)
	return result
}

// Line returns the line at index i.
func (d *Document) Line(i int) (Line, bool) {
	if d == nil || i < 0 || i >= len(d.lines) {
		return Line{}, false
	}
	return d.lines[i], true
}

// Text returns the rendered document: every line followed by two line breaks.
func (d *Document) Text() string {
	if d == nil {
		return ""
	}
	return d.text
}

// ActiveLine returns the index of the line active at time t, or None when t precedes every cue.
func (d *Document) ActiveLine(t float64) mo.Option[int] {
	if d == nil || math.IsNaN(t) {
		return mo.None[int]()
	}

	d.memoMu.Lock()
	defer d.memoMu.Unlock()

	if r, ok := d.memo[t]; ok {
		return r
	}
	r := d.index.Lookup(t)
	d.memo[t] = r
	return r
}

// LineAt returns the index of the line whose rendered range contains offset.
func (d *Document) LineAt(offset int) mo.Option[int] {
	if d == nil {
		return mo.None[int]()
	}
	_, idx, ok := lo.FindIndexOf(d.lines, func(l Line) bool {
		return l.Range.Contains(offset)
	})
	if !ok {
		return mo.None[int]()
	}
	return mo.Some(idx)
}
