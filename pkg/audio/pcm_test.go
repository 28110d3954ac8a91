package audio_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/discover-Austin/DorkNexus/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestEncodePCM16_KnownValues(t *testing.T) {
	got := audio.EncodePCM16([]float32{0, 0.5, -0.5, 1, -1})
	want := samplesToBytes([]int16{0, 16384, -16384, 32767, -32768})
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestEncodePCM16_ClampsOutOfRange(t *testing.T) {
	got := audio.EncodePCM16([]float32{1.5, -1.5})
	want := samplesToBytes([]int16{32767, -32768})
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
}

// A decoded sample may differ from the original by at most one 16-bit
// quantization step (1/32768).
func TestPCM16_RoundTripWithinQuantizationStep(t *testing.T) {
	const step = 1.0 / 32768

	in := make([]float32, 2000)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 37.0))
	}
	in = append(in, 0, 1, -1, 0.999, -0.999, step, -step)

	out, err := audio.DecodePCM16(audio.EncodePCM16(in))
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i]) - float64(in[i])); diff > step {
			t.Fatalf("sample %d: round-trip error %g exceeds quantization step %g", i, diff, step)
		}
	}
}

func TestDecodePCM16_OddLength(t *testing.T) {
	_, err := audio.DecodePCM16([]byte{0x01, 0x02, 0x03})
	if !errors.Is(err, audio.ErrOddLength) {
		t.Fatalf("err = %v; want ErrOddLength", err)
	}
}

func TestDecodePCM16_Empty(t *testing.T) {
	out, err := audio.DecodePCM16(nil)
	if err != nil {
		t.Fatalf("DecodePCM16(nil): %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d samples, want 0", len(out))
	}
}

func TestDecodeBuffer_Duration(t *testing.T) {
	// 12000 samples at 24 kHz = exactly 500 ms.
	data := make([]byte, 12000*2)
	buf, err := audio.DecodeBuffer(data, audio.PlaybackRate)
	if err != nil {
		t.Fatalf("DecodeBuffer: %v", err)
	}
	if got, want := buf.Duration(), 500*time.Millisecond; got != want {
		t.Errorf("Duration = %v; want %v", got, want)
	}
}

func TestDecodeBuffer_OddLength(t *testing.T) {
	_, err := audio.DecodeBuffer(make([]byte, 5), audio.PlaybackRate)
	if !errors.Is(err, audio.ErrOddLength) {
		t.Fatalf("err = %v; want ErrOddLength", err)
	}
}

func TestBuffer_DurationZeroRate(t *testing.T) {
	b := audio.Buffer{Samples: make([]float32, 100)}
	if b.Duration() != 0 {
		t.Errorf("Duration with zero rate = %v; want 0", b.Duration())
	}
}
