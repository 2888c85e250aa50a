package simnet

import "math"

// Tone is a phase-continuous sine generator. The same sample is written
// to every channel.
type Tone struct {
	Frequency  float64
	Amplitude  float64
	SampleRate uint32
	Channels   int

	phase float64
}

// NewTone creates a generator. Channels below one are treated as mono.
func NewTone(frequency, amplitude float64, sampleRate uint32, channels int) *Tone {
	if channels < 1 {
		channels = 1
	}
	return &Tone{
		Frequency:  frequency,
		Amplitude:  amplitude,
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Next returns the next frames sample frames, interleaved.
func (t *Tone) Next(frames int) []float32 {
	if frames <= 0 || t.SampleRate == 0 {
		return nil
	}
	out := make([]float32, frames*t.Channels)
	step := 2 * math.Pi * t.Frequency / float64(t.SampleRate)
	for i := 0; i < frames; i++ {
		v := float32(t.Amplitude * math.Sin(t.phase))
		for ch := 0; ch < t.Channels; ch++ {
			out[i*t.Channels+ch] = v
		}
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return out
}
