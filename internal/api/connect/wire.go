package connect

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/mo"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/lyricbox/internal/app/coordinator"
	"github.com/osa030/lyricbox/internal/app/notification"
	"github.com/osa030/lyricbox/internal/app/playback"
	"github.com/osa030/lyricbox/internal/domain/progress"
	"github.com/osa030/lyricbox/internal/domain/track"
)

// Intents accepted by PlayerService/Command.
const (
	IntentFetch        = "fetch"
	IntentPlay         = "play"
	IntentPause        = "pause"
	IntentBeginSeeking = "begin_seeking"
	IntentEndSeeking   = "end_seeking"
	IntentSeek         = "seek"      // value: fraction in [0,1]
	IntentSeekTime     = "seek_time" // value: seconds
)

// Command is the body of PlayerService/Command.
type Command struct {
	Intent string  `mapstructure:"intent" validate:"required,oneof=fetch play pause begin_seeking end_seeking seek seek_time"`
	Value  float64 `mapstructure:"value"`
}

var validate = validator.New()

// EncodeCommand converts a command to its wire message.
func EncodeCommand(c Command) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"intent": c.Intent,
		"value":  c.Value,
	})
}

// DecodeCommand converts a wire message to a validated command.
func DecodeCommand(s *structpb.Struct) (Command, error) {
	var c Command
	if err := mapstructure.Decode(s.AsMap(), &c); err != nil {
		return Command{}, errors.Wrap(err, "failed to decode command")
	}
	if err := validate.Struct(c); err != nil {
		return Command{}, errors.Wrap(err, "invalid command")
	}
	return c, nil
}

// wireState mirrors ViewState on the wire. Absent optionals are nil.
type wireState struct {
	SequenceNo       uint64        `mapstructure:"sequence_no"`
	Track            *wireTrack    `mapstructure:"track"`
	BufferProgress   *wireProgress `mapstructure:"buffer_progress"`
	PlaybackProgress *wireProgress `mapstructure:"playback_progress"`
	PlayerState      string        `mapstructure:"player_state"`
	IsLoading        bool          `mapstructure:"is_loading"`
	IsSeeking        bool          `mapstructure:"is_seeking"`
	LoadError        string        `mapstructure:"load_error"`
}

type wireTrack struct {
	Singer   string  `mapstructure:"singer"`
	Album    string  `mapstructure:"album"`
	Title    string  `mapstructure:"title"`
	Duration float64 `mapstructure:"duration"`
	Image    string  `mapstructure:"image"`
	File     string  `mapstructure:"file"`
	Lyrics   string  `mapstructure:"lyrics"`
}

type wireProgress struct {
	Current float64 `mapstructure:"current"`
	Total   float64 `mapstructure:"total"`
}

// EncodeNotification converts a snapshot to its wire message.
func EncodeNotification(n notification.Notification) (*structpb.Struct, error) {
	s := n.State
	m := map[string]any{
		"sequence_no":  n.SequenceNo,
		"player_state": s.PlayerState.String(),
		"is_loading":   s.IsLoading,
		"is_seeking":   s.IsSeeking,
		"load_error":   s.LoadError,
	}
	if t, ok := s.Track.Get(); ok {
		m["track"] = map[string]any{
			"singer":   t.Singer,
			"album":    t.Album,
			"title":    t.Title,
			"duration": t.DurationSeconds(),
			"image":    t.ImageURL,
			"file":     t.MediaURL,
			"lyrics":   t.RawLyrics,
		}
	}
	if p, ok := s.BufferProgress.Get(); ok {
		m["buffer_progress"] = progressMap(p)
	}
	if p, ok := s.PlaybackProgress.Get(); ok {
		m["playback_progress"] = progressMap(p)
	}

	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode view state")
	}
	return msg, nil
}

// DecodeNotification converts a wire message back to a snapshot.
func DecodeNotification(s *structpb.Struct) (notification.Notification, error) {
	var w wireState
	if err := mapstructure.Decode(s.AsMap(), &w); err != nil {
		return notification.Notification{}, errors.Wrap(err, "failed to decode view state")
	}

	state, ok := playback.ParseState(w.PlayerState)
	if !ok {
		return notification.Notification{}, errors.Newf("unknown player state: %q", w.PlayerState)
	}

	v := coordinator.ViewState{
		PlayerState: state,
		IsLoading:   w.IsLoading,
		IsSeeking:   w.IsSeeking,
		LoadError:   w.LoadError,
	}
	if w.Track != nil {
		v.Track = mo.Some(track.Track{
			Singer:    w.Track.Singer,
			Album:     w.Track.Album,
			Title:     w.Track.Title,
			Duration:  time.Duration(w.Track.Duration * float64(time.Second)),
			ImageURL:  w.Track.Image,
			MediaURL:  w.Track.File,
			RawLyrics: w.Track.Lyrics,
		})
	}
	if w.BufferProgress != nil {
		v.BufferProgress = mo.Some(progress.New(w.BufferProgress.Current, w.BufferProgress.Total))
	}
	if w.PlaybackProgress != nil {
		v.PlaybackProgress = mo.Some(progress.New(w.PlaybackProgress.Current, w.PlaybackProgress.Total))
	}

	return notification.Notification{SequenceNo: w.SequenceNo, State: v}, nil
}

func progressMap(p progress.TimeProgress) map[string]any {
	return map[string]any{
		"current": p.Current,
		"total":   p.Total,
	}
}
