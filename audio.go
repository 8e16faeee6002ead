package tahti

import "math"

// AudioBuffer is a buffer of stereo audio samples of variable length, each
// sample represented by [2]float32. [0] is left channel, [1] is right.
type AudioBuffer [][2]float32

// Fill copies the left and right channels into the buffer, interleaving
// them. The number of frames copied is the smallest of the lengths.
func (b AudioBuffer) Fill(left, right []float32) int {
	n := min(len(b), len(left), len(right))
	for i := range n {
		b[i] = [2]float32{left[i], right[i]}
	}
	return n
}

// Quantize converts a float sample to a 16-bit signed integer sample,
// clamping to [-1,1] first.
func Quantize(v float32) int16 {
	if v <= -1 {
		return -math.MaxInt16
	}
	if v >= 1 {
		return math.MaxInt16
	}
	return int16(v * math.MaxInt16)
}
