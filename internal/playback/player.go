package playback

import (
	"math"
	"time"

	"screencast/internal/catalog"
)

const (
	// SkipSeconds is the jump for the skip buttons and arrow keys.
	SkipSeconds = 10
	// ControlsHideDelay is how long controls stay up without pointer
	// movement while playing.
	ControlsHideDelay = 3 * time.Second
)

// Rates is the speed menu.
var Rates = []float64{0.5, 0.75, 1, 1.25, 1.5, 2}

// Actions the page script knows how to perform.
const (
	ActionTogglePlay = "togglePlay"
	ActionFullscreen = "fullscreen"
	ActionMute       = "mute"
	ActionBack       = "back"
	ActionForward    = "forward"
	ActionComment    = "comment"
)

// Shortcuts maps KeyboardEvent.key values to actions. The page ignores them
// while focus is in a text field.
var Shortcuts = map[string]string{
	" ":          ActionTogglePlay,
	"k":          ActionTogglePlay,
	"f":          ActionFullscreen,
	"m":          ActionMute,
	"ArrowLeft":  ActionBack,
	"ArrowRight": ActionForward,
	"c":          ActionComment,
}

// Marker is a comment's position on the progress bar, from 0 to 1.
type Marker struct {
	CommentID string
	Anchor    int
	Position  float64
}

// markers positions each anchored comment at anchor/duration. Anchors
// outside [0, duration], or any anchor while the duration is unknown, get
// no marker.
func markers(comments []catalog.Comment, duration float64) []Marker {
	if duration <= 0 {
		return nil
	}
	var out []Marker
	for _, c := range comments {
		if c.Timestamp == nil {
			continue
		}
		ts := *c.Timestamp
		if math.IsNaN(ts) || ts < 0 || ts > duration {
			continue
		}
		anchor, _ := c.Anchor()
		out = append(out, Marker{CommentID: c.ID, Anchor: anchor, Position: ts / duration})
	}
	return out
}
