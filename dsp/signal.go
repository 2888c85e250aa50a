package dsp

import "math"

// lowEnergy is the mean-square level under which a segment counts as silence.
const lowEnergy = 1e-8

// mixDown averages interleaved channels into one mono slice.
func mixDown(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	inv := 1.0 / float32(channels)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum * inv
	}
	return mono
}

// meanSquare returns the mean of x^2.
func meanSquare(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var e float64
	for _, v := range x {
		e += float64(v) * float64(v)
	}
	return e / float64(len(x))
}

// normalizedCorrelation returns <a,b> / sqrt(<a,a><b,b>), or 0 when either
// segment has no energy. a and b must have equal length.
func normalizedCorrelation(a, b []float32) float64 {
	var ab, aa, bb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		ab += x * y
		aa += x * x
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / math.Sqrt(aa*bb)
}

// Crossfade mixes from a into b with a linear ramp over their common length
// in sample frames. The first output frame is mostly a, the last mostly b.
func Crossfade(a, b []float32, channels int) []float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if channels < 1 {
		channels = 1
	}
	frames := n / channels
	out := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		w := float32(i+1) / float32(frames+1)
		for ch := 0; ch < channels; ch++ {
			k := i*channels + ch
			out[k] = a[k]*(1-w) + b[k]*w
		}
	}
	return out
}

// ApplyGainRamp scales interleaved samples in place by a gain moving
// linearly from g0 (first frame) toward g1 (one frame past the last).
func ApplyGainRamp(samples []float32, channels int, g0, g1 float64) {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	if frames == 0 {
		return
	}
	step := (g1 - g0) / float64(frames)
	for i := 0; i < frames; i++ {
		g := float32(g0 + step*float64(i))
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] *= g
		}
	}
}
