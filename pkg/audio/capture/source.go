package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/discover-Austin/DorkNexus/pkg/audio"
)

// PushSource is a [Source] fed by an external producer, typically the
// WebSocket gateway relaying microphone frames from the browser. Frames
// pushed before Open are discarded.
//
// All methods are safe for concurrent use.
type PushSource struct {
	sampleRate int
	buf        int

	mu     sync.Mutex
	ch     chan audio.Frame
	start  time.Time
	closed bool
}

// NewPushSource creates a PushSource whose frames carry the given
// sample rate. buf is the frame channel depth; values below 1 are
// raised to 1.
func NewPushSource(sampleRate, buf int) *PushSource {
	if buf < 1 {
		buf = 1
	}
	return &PushSource{sampleRate: sampleRate, buf: buf}
}

// Open implements [Source]. Calling Open on a closed source fails.
func (s *PushSource) Open(_ context.Context) (<-chan audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("capture: source is closed")
	}
	if s.ch == nil {
		s.ch = make(chan audio.Frame, s.buf)
		s.start = time.Now()
	}
	return s.ch, nil
}

// Push delivers one raw PCM16 frame. Frames pushed when the channel is
// full are dropped rather than blocking the producer.
func (s *PushSource) Push(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ch == nil {
		return
	}
	frame := audio.Frame{
		Data:       data,
		SampleRate: s.sampleRate,
		Timestamp:  time.Since(s.start),
	}
	select {
	case s.ch <- frame:
	default:
	}
}

// Close implements [Source]. Closes the frame channel; idempotent.
func (s *PushSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ch != nil {
		close(s.ch)
	}
	return nil
}
