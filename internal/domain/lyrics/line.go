// Package lyrics parses time-tagged lyric text and maps a playback time to the active line.
package lyrics

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// lineSuffix is appended to every line when the document is rendered as one text.
const lineSuffix = "\n\n"

// tagPattern matches a leading [MM:SS:mmm] cue tag.
var tagPattern = regexp.MustCompile(`^\[([0-9]+):([0-9]+):([0-9]+)\]`)

// Range is a half-open rune range [Start, End) within the rendered document text.
type Range struct {
	Start int
	End   int
}

// Len returns the number of runes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether offset falls inside the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Line is one cue: a start time and its display text.
type Line struct {
	Time  float64 // Start time in seconds (0 when the line carries no valid tag)
	Text  string  // Display text without the tag
	Range Range   // Position of the rendered line (text plus trailing breaks)
}

// Rendered returns the line as it appears in the document text.
func (l Line) Rendered() string {
	return l.Text + lineSuffix
}

// parseLine splits a raw line into its cue time and text.
// Lines without a well-formed leading tag keep their raw text at time 0.
func parseLine(raw string) (float64, string) {
	m := tagPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, raw
	}
	minutes := atof(m[1])
	seconds := atof(m[2])
	millis := atof(m[3])
	return minutes*60 + seconds + millis/1000, raw[len(m[0]):]
}

// atof reads a digit-only component. Components beyond float64 range count as 0.
func atof(s string) float64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseLines splits raw text on '\n' and assigns contiguous ranges.
func parseLines(raw string) []Line {
	offset := 0
	return lo.Map(strings.Split(raw, "\n"), func(rawLine string, _ int) Line {
		t, text := parseLine(rawLine)
		line := Line{Time: t, Text: text}
		length := utf8.RuneCountInString(line.Rendered())
		line.Range = Range{Start: offset, End: offset + length}
		offset += length
		return line
	})
}
