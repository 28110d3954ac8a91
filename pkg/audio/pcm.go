// Package audio provides the PCM primitives shared by the capture and
// playback paths of the DorkNexus voice service: a float32 ⇄ int16
// little-endian codec, linear resampling, and RMS level metering.
//
// The wire format is raw 16-bit signed little-endian PCM throughout.
// Capture runs at 16 kHz mono and playback at 24 kHz mono; both rates
// are fixed by the remote speech endpoint.
package audio

import (
	"errors"
	"time"
)

const (
	// CaptureRate is the sample rate of outbound microphone audio in Hz.
	CaptureRate = 16000

	// PlaybackRate is the sample rate of inbound synthesised audio in Hz.
	PlaybackRate = 24000

	// CaptureWindow is the number of samples per capture callback window.
	CaptureWindow = 4096
)

// ErrOddLength is returned when PCM data cannot be interpreted as int16
// samples because its byte count is odd. Callers treat the frame as
// dropped; the error is never fatal to a session.
var ErrOddLength = errors.New("audio: odd byte count in PCM data")

// EncodePCM16 converts float32 samples in [-1, 1] to little-endian int16
// PCM bytes. Out-of-range samples are clamped before scaling.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodePCM16 converts little-endian int16 PCM bytes to float32 samples
// in [-1, 1]. Returns [ErrOddLength] if len(data) is not a multiple of 2.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(v) / 32768
	}
	return out, nil
}

// Buffer is a decoded block of mono audio ready for playback scheduling.
type Buffer struct {
	// Samples holds float32 PCM in [-1, 1].
	Samples []float32

	// SampleRate in Hz.
	SampleRate int
}

// Duration returns the playback duration of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(b.Samples)) * int64(time.Second) / int64(b.SampleRate))
}

// DecodeBuffer interprets data as little-endian int16 PCM at the given
// sample rate and returns a playable [Buffer]. Succeeds for any even
// byte length, including zero; returns [ErrOddLength] otherwise.
func DecodeBuffer(data []byte, sampleRate int) (Buffer, error) {
	samples, err := DecodePCM16(data)
	if err != nil {
		return Buffer{}, err
	}
	return Buffer{Samples: samples, SampleRate: sampleRate}, nil
}
