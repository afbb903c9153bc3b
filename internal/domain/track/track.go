// Package track provides the Track domain entity.
package track

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/osa030/lyricbox/internal/domain/lyrics"
)

// ErrInvalid is returned when a descriptor is missing required fields.
var ErrInvalid = errors.New("invalid track descriptor")

// Track is the descriptor of one playable item.
// It is created once per fetch and never mutated.
type Track struct {
	Singer    string        // Singer name
	Album     string        // Album name
	Title     string        // Track title
	Duration  time.Duration // Track duration as published by the descriptor
	ImageURL  string        // Cover image reference
	MediaURL  string        // Media locator handed to the playback engine
	RawLyrics string        // Time-tagged lyric text
}

// descriptor is the JSON contract of the fetch service.
type descriptor struct {
	Singer   string `json:"singer"`
	Album    string `json:"album"`
	Title    string `json:"title"`
	Duration int    `json:"duration" validate:"gte=0"`
	Image    string `json:"image"`
	File     string `json:"file" validate:"required"`
	Lyrics   string `json:"lyrics"`
}

var validate = validator.New()

// Decode decodes a JSON track descriptor.
func Decode(data []byte) (Track, error) {
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Track{}, errors.Wrap(err, "failed to decode track descriptor")
	}
	if err := validate.Struct(d); err != nil {
		return Track{}, errors.Mark(errors.Wrap(err, "track descriptor validation failed"), ErrInvalid)
	}

	return Track{
		Singer:    d.Singer,
		Album:     d.Album,
		Title:     d.Title,
		Duration:  time.Duration(d.Duration) * time.Second,
		ImageURL:  d.Image,
		MediaURL:  d.File,
		RawLyrics: d.Lyrics,
	}, nil
}

// DurationSeconds returns the published duration in seconds.
func (t Track) DurationSeconds() float64 {
	return t.Duration.Seconds()
}

// Lyrics parses the raw lyric text.
// Each call returns a new document with its own lookup memo.
func (t Track) Lyrics() *lyrics.Document {
	return lyrics.Parse(t.RawLyrics)
}
