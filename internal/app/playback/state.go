// Package playback provides the playback engine that owns one media session.
package playback

// State represents the player state.
type State int

const (
	StateStopped State = iota // Nothing playing, or a new item was prepared
	StatePlaying              // Playback requested (applied once the item is ready)
	StatePaused               // Playback paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// ParseState parses the string form produced by String.
func ParseState(s string) (State, bool) {
	switch s {
	case "stopped":
		return StateStopped, true
	case "playing":
		return StatePlaying, true
	case "paused":
		return StatePaused, true
	default:
		return StateStopped, false
	}
}
