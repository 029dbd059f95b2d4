package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TrackInfo describes one track that went into an artifact.
type TrackInfo struct {
	Kind   TrackKind  `json:"kind"`
	Source DeviceKind `json:"source"`
	Label  string     `json:"label"`
}

// Artifact is the finalized recording.
type Artifact struct {
	Data     []byte
	MimeType string
	// Duration is the elapsed recording time in whole seconds, excluding
	// time spent paused.
	Duration   int
	Tracks     []TrackInfo
	PreviewRef string
	CreatedAt  time.Time
}

// Size returns the artifact's byte length.
func (a *Artifact) Size() int64 { return int64(len(a.Data)) }

// AudioSources lists the devices that contributed audio, in track order.
func (a *Artifact) AudioSources() []DeviceKind {
	var out []DeviceKind
	for _, t := range a.Tracks {
		if t.Kind == TrackAudio {
			out = append(out, t.Source)
		}
	}
	return out
}

// DownloadName is the file name offered when saving the artifact locally.
func (a *Artifact) DownloadName(title string) string {
	base := strings.TrimSpace(title)
	if base == "" {
		base = "recording"
	}
	base = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, base)
	return fmt.Sprintf("%s-%d.webm", base, a.CreatedAt.UnixMilli())
}

func describe(s *Stream) []TrackInfo {
	tracks := s.Tracks()
	out := make([]TrackInfo, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, TrackInfo{Kind: t.Kind(), Source: t.Source(), Label: t.Label()})
	}
	return out
}

// Previewer makes a finished artifact locally addressable and revokes that
// reference when the artifact is discarded.
type Previewer interface {
	Publish(a *Artifact) (string, error)
	Revoke(ref string)
}

// TempFilePreviewer writes artifacts to files under Dir (os.TempDir when
// empty). The reference is the file path.
type TempFilePreviewer struct {
	Dir string
}

// Publish writes the artifact and returns its path.
func (p TempFilePreviewer) Publish(a *Artifact) (string, error) {
	f, err := os.CreateTemp(p.Dir, "screencast-preview-*.webm")
	if err != nil {
		return "", fmt.Errorf("creating preview file: %w", err)
	}
	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing preview file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing preview file: %w", err)
	}
	return filepath.Clean(f.Name()), nil
}

// Revoke removes the preview file.
func (p TempFilePreviewer) Revoke(ref string) {
	if ref != "" {
		_ = os.Remove(ref)
	}
}

// Output is anything that displays a live stream, such as a preview window.
type Output interface {
	Attach(s *Stream)
}
