// Package playback schedules decoded model audio onto a gapless
// timeline.
//
// Chunks arrive as raw PCM16 payloads in network order. Each chunk is
// assigned a start position of max(cursor, now) on a monotonic
// timeline, and the cursor advances by the chunk's duration, so
// consecutive chunks play back to back without gaps or overlap even
// when they arrive in bursts. A live set tracks chunks that have not
// finished yet; when the last one ends naturally the drained callback
// fires, signalling that the assistant has stopped speaking.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/discover-Austin/DorkNexus/pkg/audio"
)

// Clock abstracts the scheduler's notion of time so tests can drive it
// deterministically.
type Clock interface {
	// Now returns the elapsed time on the playback timeline.
	Now() time.Duration
	// AfterFunc invokes f after d has elapsed on the timeline.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback returned by Clock.AfterFunc.
type Timer interface {
	// Stop cancels the timer. It reports whether the callback was
	// prevented from running.
	Stop() bool
}

// realClock implements Clock on the wall clock, measuring from an epoch
// fixed at construction.
type realClock struct {
	epoch time.Time
}

func (c realClock) Now() time.Duration { return time.Since(c.epoch) }

func (c realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Item is one scheduled chunk handed to the output callback.
type Item struct {
	// Buffer holds the decoded samples.
	Buffer audio.Buffer
	// Start is the chunk's position on the playback timeline.
	Start time.Duration
}

// Option configures a Scheduler during construction.
type Option func(*Scheduler)

// WithClock replaces the wall clock. Used in tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithSampleRate overrides the sample rate chunks are decoded at.
// Defaults to audio.PlaybackRate.
func WithSampleRate(rate int) Option {
	return func(s *Scheduler) { s.sampleRate = rate }
}

// Scheduler places incoming audio chunks on a monotonic timeline and
// delivers them, with their start positions, to an output callback.
//
// All exported methods are safe for concurrent use.
type Scheduler struct {
	output     func(Item) // receives each scheduled chunk; must not block
	clock      Clock
	sampleRate int

	mu        sync.Mutex
	cursor    time.Duration // end of the last scheduled chunk
	live      map[uint64]Timer
	seq       uint64
	onDrained func()
	closed    bool
}

// New creates a Scheduler that delivers scheduled chunks to output.
// output must not be nil; it is called from the goroutine that calls
// Enqueue.
func New(output func(Item), opts ...Option) *Scheduler {
	s := &Scheduler{
		output:     output,
		clock:      realClock{epoch: time.Now()},
		sampleRate: audio.PlaybackRate,
		live:       make(map[uint64]Timer),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnDrained registers the callback invoked when the last live chunk
// finishes playing naturally. Cancellation via CancelAll or Close never
// fires it. Only one callback may be active at a time.
func (s *Scheduler) OnDrained(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrained = fn
}

// Enqueue decodes one PCM16 payload and schedules it at
// max(cursor, now). The cursor then advances by the chunk's duration,
// so bursts of small chunks butt up against each other while a chunk
// arriving after silence starts immediately.
func (s *Scheduler) Enqueue(payload []byte) error {
	buf, err := audio.DecodeBuffer(payload, s.sampleRate)
	if err != nil {
		return fmt.Errorf("playback: decode: %w", err)
	}
	if len(buf.Samples) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("playback: scheduler closed")
	}

	now := s.clock.Now()
	start := s.cursor
	if now > start {
		start = now
	}
	dur := buf.Duration()
	s.cursor = start + dur

	id := s.seq
	s.seq++
	s.live[id] = s.clock.AfterFunc(s.cursor-now, func() { s.finish(id) })
	s.mu.Unlock()

	s.output(Item{Buffer: buf, Start: start})
	return nil
}

// finish removes one chunk from the live set and fires the drained
// callback if it was the last.
func (s *Scheduler) finish(id uint64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.live[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.live, id)
	var fn func()
	if len(s.live) == 0 {
		fn = s.onDrained
	}
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// CancelAll flushes every scheduled chunk that has not finished and
// rewinds the cursor to now, so the next chunk starts immediately. The
// drained callback is not invoked. Used for barge-in.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.live {
		t.Stop()
		delete(s.live, id)
	}
	s.cursor = s.clock.Now()
}

// Pending returns the number of chunks scheduled but not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Close flushes all pending chunks and rejects further Enqueue calls.
// Idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, t := range s.live {
		t.Stop()
		delete(s.live, id)
	}
	return nil
}
