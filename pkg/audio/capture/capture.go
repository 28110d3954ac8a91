// Package capture implements the microphone capture pipeline: it frames
// a continuous input stream into fixed-size windows at the 16 kHz
// capture rate, meters each window's RMS amplitude for the UI, and
// forwards the raw window to an outbound sink.
//
// The pipeline is deliberately fire-and-forget per window: it holds at
// most one partial window of audio and never queues completed windows.
// If the sink is slow or failing, windows are dropped — capture cadence
// is never affected by downstream backpressure.
package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/discover-Austin/DorkNexus/pkg/audio"
)

// Source delivers raw mono PCM16 frames from a microphone-like input.
//
// Implementations wrap a concrete input device (the WebSocket gateway
// provides one fed by browser media frames). Open acquires the device;
// an Open error means the microphone is unavailable and the session
// must not start.
type Source interface {
	// Open acquires the input and returns its frame stream. The channel
	// is closed when the source is closed or the input ends.
	Open(ctx context.Context) (<-chan audio.Frame, error)

	// Close releases the input. Safe to call more than once.
	Close() error
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithWindow overrides the capture window size in samples. The default
// is [audio.CaptureWindow]. Useful in tests to keep fixtures small.
func WithWindow(samples int) Option {
	return func(p *Pipeline) {
		if samples > 0 {
			p.window = samples
		}
	}
}

// WithLevelFunc registers cb to receive the RMS level (0–100) of every
// completed window. The callback runs on the pipeline goroutine and
// must not block.
func WithLevelFunc(cb func(float64)) Option {
	return func(p *Pipeline) { p.onLevel = cb }
}

// Pipeline frames an input stream into fixed windows and forwards each
// window to sink. Create one per session with [New]; it is not reusable
// after [Pipeline.Stop].
type Pipeline struct {
	sink    func([]byte) error
	onLevel func(float64)
	window  int

	warnedCorrupt sync.Once
	done          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// New creates a Pipeline that forwards completed windows to sink.
// sink must not be nil; it is called sequentially from the pipeline
// goroutine. A sink error drops that window only.
func New(sink func([]byte) error, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink:   sink,
		window: audio.CaptureWindow,
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start begins consuming frames on a background goroutine. It returns
// immediately; call [Pipeline.Stop] to end processing and wait for the
// goroutine to exit. Processing also ends when frames closes.
func (p *Pipeline) Start(frames <-chan audio.Frame) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(frames)
	}()
}

// Stop ends processing and waits for the pipeline goroutine. Any
// partial window is discarded. Idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Pipeline) run(frames <-chan audio.Frame) {
	windowBytes := p.window * 2
	pending := make([]byte, 0, windowBytes)

	for {
		select {
		case <-p.done:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			data := frame.Data
			if len(data)%2 != 0 {
				p.warnedCorrupt.Do(func() {
					slog.Warn("capture: odd byte count in PCM frame, dropping",
						"bytes", len(data),
						"sampleRate", frame.SampleRate,
					)
				})
				continue
			}
			if frame.SampleRate != 0 && frame.SampleRate != audio.CaptureRate {
				data = audio.ResampleMono16(data, frame.SampleRate, audio.CaptureRate)
			}

			pending = append(pending, data...)
			for len(pending) >= windowBytes {
				win := make([]byte, windowBytes)
				copy(win, pending)
				pending = pending[:copy(pending, pending[windowBytes:])]
				p.emit(win)
			}
		}
	}
}

// emit meters and forwards one completed window. Send failures drop the
// window; capture continues.
func (p *Pipeline) emit(win []byte) {
	if p.onLevel != nil {
		p.onLevel(audio.Level(win))
	}
	if err := p.sink(win); err != nil {
		slog.Debug("capture: window dropped", "err", err)
	}
}
