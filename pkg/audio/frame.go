package audio

import "time"

// Frame represents a single block of captured audio flowing through the
// pipeline. Frames are the atomic unit of transport: produced by a
// capture source, framed into fixed windows, encoded, and sent to the
// live session.
type Frame struct {
	// Data is raw little-endian int16 mono PCM.
	Data []byte

	// SampleRate in Hz (16000 for the capture path).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}
