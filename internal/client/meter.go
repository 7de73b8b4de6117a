package client

import "math"

// Level computes the RMS level of a 16-bit little-endian PCM frame,
// normalized to 0..1. Odd trailing bytes are ignored.
func Level(frame []byte) float64 {
	samples := len(frame) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(frame); i += 2 {
		s := int16(uint16(frame[i]) | uint16(frame[i+1])<<8)
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}
