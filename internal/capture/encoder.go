package capture

import (
	"bytes"
	"sync"
	"time"
)

// DefaultMimeType is used when none of the preferred codecs is supported.
const DefaultMimeType = "video/webm"

// PreferredMimeTypes lists container/codec pairs, most preferred first.
var PreferredMimeTypes = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
}

// EncoderOptions configures one encoding run.
type EncoderOptions struct {
	MimeType           string
	VideoBitsPerSecond int
	// Timeslice is how often buffered output is handed to the data callback.
	Timeslice time.Duration
}

// Encoder turns a composed stream into container bytes.
type Encoder interface {
	// Start begins encoding. onData receives fragments in emission order;
	// empty fragments may be passed and are ignored by the controller.
	Start(onData func([]byte)) error
	// Pause suspends encoding. No fragments are emitted while paused.
	Pause() error
	Resume() error
	// Stop flushes the encoder. Every onData call happens before Stop
	// returns.
	Stop() error
}

// EncoderFactory reports codec support and creates encoders.
type EncoderFactory interface {
	IsTypeSupported(mimeType string) bool
	NewEncoder(stream *Stream, opts EncoderOptions) (Encoder, error)
}

// SelectMimeType picks the first supported preferred type, or the default.
func SelectMimeType(f EncoderFactory) string {
	for _, mt := range PreferredMimeTypes {
		if f.IsTypeSupported(mt) {
			return mt
		}
	}
	return DefaultMimeType
}

// chunkBuffer collects encoder output in emission order. It has its own
// lock so encoder callbacks never contend with the controller's.
type chunkBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

func (b *chunkBuffer) append(p []byte) {
	if len(p) == 0 {
		return
	}
	c := make([]byte, len(p))
	copy(c, p)

	b.mu.Lock()
	b.chunks = append(b.chunks, c)
	b.size += len(c)
	b.mu.Unlock()
}

func (b *chunkBuffer) concat() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Join(b.chunks, nil)
}

func (b *chunkBuffer) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

func (b *chunkBuffer) bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *chunkBuffer) reset() {
	b.mu.Lock()
	b.chunks = nil
	b.size = 0
	b.mu.Unlock()
}
