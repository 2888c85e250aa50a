package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrResamplerInput is returned for samples not aligned to the channel count.
var ErrResamplerInput = errors.New("resampler input not aligned to channel count")

// ResampleQuality selects the resampling algorithm.
type ResampleQuality int

const (
	// ResampleLinear interpolates between neighbouring frames. It adds no
	// latency, so every chunk maps to output of the same duration.
	ResampleLinear ResampleQuality = iota
	// ResampleHigh uses a polyphase filter. Output lags input by the
	// filter delay, so early chunks come back short.
	ResampleHigh
)

// String returns the quality name.
func (q ResampleQuality) String() string {
	switch q {
	case ResampleLinear:
		return "linear"
	case ResampleHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Resampler converts interleaved float32 audio between sample rates.
//
// The linear path carries the last input frame and the fractional read
// position across calls, so a stream split into arbitrary chunks resamples
// without discontinuities at chunk boundaries. The high quality path keeps
// its filter state across calls for the same reason.
type Resampler struct {
	inputRate  uint32
	outputRate uint32
	channels   int
	quality    ResampleQuality
	last       []float32
	hasLast    bool
	position   float64

	filter resampling.Resampler
}

// ResamplerConfig holds configuration for creating a resampler.
type ResamplerConfig struct {
	InputRate  uint32          // Input sample rate in Hz
	OutputRate uint32          // Output sample rate in Hz
	Channels   int             // Interleaved channel count
	Quality    ResampleQuality // Algorithm (default: ResampleLinear)
}

// NewResampler creates a resampler from InputRate to OutputRate.
func NewResampler(config ResamplerConfig) (*Resampler, error) {
	if config.InputRate == 0 || config.OutputRate == 0 {
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", config.InputRate, config.OutputRate)
	}
	if config.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", config.Channels)
	}

	r := &Resampler{
		inputRate:  config.InputRate,
		outputRate: config.OutputRate,
		channels:   config.Channels,
		quality:    config.Quality,
		last:       make([]float32, config.Channels),
	}
	if config.Quality == ResampleHigh && config.InputRate != config.OutputRate {
		if err := r.newFilter(); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  config.InputRate,
		"output_rate": config.OutputRate,
		"channels":    config.Channels,
		"quality":     config.Quality.String(),
	}).Debug("Audio resampler created")

	return r, nil
}

func (r *Resampler) newFilter() error {
	filter, err := resampling.New(&resampling.Config{
		InputRate:  float64(r.inputRate),
		OutputRate: float64(r.outputRate),
		Channels:   r.channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return fmt.Errorf("failed to create resampling filter: %w", err)
	}
	r.filter = filter
	return nil
}

// Resample converts one chunk of interleaved input. The output length
// varies by one frame between calls as the fractional position advances.
func (r *Resampler) Resample(samples []float32) ([]float32, error) {
	if len(samples)%r.channels != 0 {
		return nil, fmt.Errorf("%w: %d samples, %d channels", ErrResamplerInput, len(samples), r.channels)
	}
	frames := len(samples) / r.channels
	if frames == 0 {
		return nil, nil
	}
	if r.inputRate == r.outputRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		r.remember(samples, frames)
		return out, nil
	}

	if r.filter != nil {
		return r.resampleFiltered(samples)
	}

	step := float64(r.inputRate) / float64(r.outputRate)
	estimate := int(math.Ceil(float64(frames)/step)) + 1
	out := make([]float32, 0, estimate*r.channels)

	pos := r.position
	for pos <= float64(frames-1) {
		i := int(math.Floor(pos))
		frac := float32(pos - float64(i))
		for ch := 0; ch < r.channels; ch++ {
			a := r.at(samples, i, ch)
			b := r.at(samples, i+1, ch)
			out = append(out, a+(b-a)*frac)
		}
		pos += step
	}
	r.position = pos - float64(frames)
	r.remember(samples, frames)
	return out, nil
}

func (r *Resampler) resampleFiltered(samples []float32) ([]float32, error) {
	in := make([]float64, len(samples))
	for i, v := range samples {
		in[i] = float64(v)
	}
	res, err := r.filter.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	res = res[:len(res)/r.channels*r.channels]
	out := make([]float32, len(res))
	for i, v := range res {
		out[i] = float32(v)
	}
	return out, nil
}

// at returns frame i of the current chunk, where -1 is the previous chunk's
// last frame.
func (r *Resampler) at(samples []float32, i, ch int) float32 {
	if i < 0 {
		if r.hasLast {
			return r.last[ch]
		}
		return samples[ch]
	}
	return samples[i*r.channels+ch]
}

func (r *Resampler) remember(samples []float32, frames int) {
	copy(r.last, samples[(frames-1)*r.channels:])
	r.hasLast = true
}

// Reset discards interpolation and filter state.
func (r *Resampler) Reset() {
	for i := range r.last {
		r.last[i] = 0
	}
	r.hasLast = false
	r.position = 0
	if r.filter != nil {
		if err := r.newFilter(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Resampler.Reset",
				"error":    err.Error(),
			}).Warn("Falling back to linear resampling")
			r.filter = nil
		}
	}
}

// InputRate returns the configured input sample rate.
func (r *Resampler) InputRate() uint32 { return r.inputRate }

// OutputRate returns the configured output sample rate.
func (r *Resampler) OutputRate() uint32 { return r.outputRate }

// Quality returns the algorithm in use.
func (r *Resampler) Quality() ResampleQuality {
	if r.filter == nil {
		return ResampleLinear
	}
	return ResampleHigh
}
