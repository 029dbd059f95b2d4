package capture

import (
	"sync"

	"github.com/google/uuid"
)

// TrackKind is the media type carried by a track.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Track is one live media source owned by a capture session. Stopping a
// track releases the underlying device. A track can also end from the
// source side, for example when the operating system revokes screen
// sharing; only that path fires OnEnded handlers.
type Track struct {
	id      string
	kind    TrackKind
	source  DeviceKind
	label   string
	release func()

	mu          sync.Mutex
	ended       bool
	sourceEnded bool
	onEnded     []func()
}

// NewTrack creates a live track. release is called exactly once, on the
// first Stop or End, and may be nil.
func NewTrack(kind TrackKind, source DeviceKind, label string, release func()) *Track {
	return &Track{
		id:      uuid.NewString(),
		kind:    kind,
		source:  source,
		label:   label,
		release: release,
	}
}

func (t *Track) ID() string         { return t.id }
func (t *Track) Kind() TrackKind    { return t.kind }
func (t *Track) Source() DeviceKind { return t.source }
func (t *Track) Label() string      { return t.label }

// Live reports whether the track has neither been stopped nor ended.
func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.ended
}

// Stop releases the track. It does not fire OnEnded handlers. Calling Stop
// on a stopped or ended track is a no-op.
func (t *Track) Stop() {
	t.finish(false)
}

// End marks the track as ended by its source and fires OnEnded handlers.
// Backends call this when a device goes away underneath the session.
func (t *Track) End() {
	handlers := t.finish(true)
	for _, fn := range handlers {
		fn()
	}
}

func (t *Track) finish(bySource bool) []func() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return nil
	}
	t.ended = true
	t.sourceEnded = bySource
	handlers := t.onEnded
	t.onEnded = nil
	release := t.release
	t.mu.Unlock()

	if release != nil {
		release()
	}
	return handlers
}

// OnEnded registers fn to run when the source ends the track. If the
// source already ended it, fn runs right away; a track released with Stop
// never calls fn.
func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	if !t.ended {
		t.onEnded = append(t.onEnded, fn)
		t.mu.Unlock()
		return
	}
	late := t.sourceEnded
	t.mu.Unlock()
	if late {
		fn()
	}
}

// Stream groups tracks acquired from one device request, or the composed
// recording stream.
type Stream struct {
	tracks []*Track
}

// NewStream returns a stream over tracks.
func NewStream(tracks ...*Track) *Stream {
	return &Stream{tracks: tracks}
}

// Tracks returns a copy of the stream's tracks. A nil stream has none.
func (s *Stream) Tracks() []*Track {
	if s == nil {
		return nil
	}
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// VideoTracks returns the video tracks in order.
func (s *Stream) VideoTracks() []*Track { return s.byKind(TrackVideo) }

// AudioTracks returns the audio tracks in order.
func (s *Stream) AudioTracks() []*Track { return s.byKind(TrackAudio) }

func (s *Stream) byKind(kind TrackKind) []*Track {
	if s == nil {
		return nil
	}
	var out []*Track
	for _, t := range s.tracks {
		if t.kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Live reports whether any track is still live.
func (s *Stream) Live() bool {
	if s == nil {
		return false
	}
	for _, t := range s.tracks {
		if t.Live() {
			return true
		}
	}
	return false
}

// Release stops every track. Safe on a nil stream and safe to repeat.
func (s *Stream) Release() {
	if s == nil {
		return
	}
	for _, t := range s.tracks {
		t.Stop()
	}
}

// Compose builds the recordable stream: the screen's video tracks, then
// the microphone's audio tracks, then any audio the screen capture carried.
// The composed stream shares tracks with its inputs and owns none of them.
func Compose(screen, mic *Stream) *Stream {
	var tracks []*Track
	tracks = append(tracks, screen.VideoTracks()...)
	tracks = append(tracks, mic.AudioTracks()...)
	tracks = append(tracks, screen.AudioTracks()...)
	return NewStream(tracks...)
}
