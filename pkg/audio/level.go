package audio

import "math"

// Level computes the RMS amplitude of a window of little-endian int16
// PCM, scaled to a 0–100 display metric. A full-scale sine wave reads
// roughly 70; speech typically sits in the 5–40 range.
//
// Odd trailing bytes are ignored rather than rejected — the level meter
// is a UI side effect and must never fail a frame.
func Level(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(pcm[i*2])|int16(pcm[i*2+1])<<8) / 32768
		sum += v * v
	}
	return math.Sqrt(sum/float64(samples)) * 100
}
