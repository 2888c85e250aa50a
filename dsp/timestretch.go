package dsp

import "github.com/sirupsen/logrus"

// DefaultMinCorrelation is the similarity a splice point needs before a
// stretch is applied to non-silent audio.
const DefaultMinCorrelation = 0.6

// Stretcher performs single-splice time-scale modification on interleaved
// audio. Each call produces exactly one frame of output and reports how
// much input it consumed.
type Stretcher struct {
	channels       int
	minLag         int
	maxRatio       float64
	minCorrelation float64
}

// NewStretcher creates a stretcher. maxRatio bounds the lag as a fraction of
// the frame and is clamped to (0, 0.5].
func NewStretcher(sampleRate uint32, channels int, maxRatio float64) *Stretcher {
	if channels < 1 {
		channels = 1
	}
	if maxRatio <= 0 || maxRatio > 0.5 {
		maxRatio = 0.5
	}
	minLag := int(sampleRate) / 2000
	if minLag < 1 {
		minLag = 1
	}
	return &Stretcher{
		channels:       channels,
		minLag:         minLag,
		maxRatio:       maxRatio,
		minCorrelation: DefaultMinCorrelation,
	}
}

// MinLag returns the shortest splice lag in sample frames.
func (s *Stretcher) MinLag() int { return s.minLag }

// MaxLag returns the longest splice lag for a frame of the given length.
func (s *Stretcher) MaxLag(frameFrames int) int {
	return int(float64(frameFrames) * s.maxRatio)
}

// Accelerate emits one frame from src while consuming frameFrames plus the
// splice lag, removing one lag of audio. src must hold at least
// frameFrames+MinLag frames. ok is false when no acceptable splice exists,
// in which case the caller plays the frame unmodified.
func (s *Stretcher) Accelerate(src []float32, frameFrames int) (out []float32, consumed int, ok bool) {
	available := len(src) / s.channels
	maxLag := s.MaxLag(frameFrames)
	if room := available - frameFrames; room < maxLag {
		maxLag = room
	}
	if maxLag < s.minLag {
		return nil, 0, false
	}

	lag, corr := bestSpliceLag(mixDown(src, s.channels), s.minLag, maxLag)
	if corr < s.minCorrelation {
		return nil, 0, false
	}

	ch := s.channels
	out = make([]float32, frameFrames*ch)
	crossfadeInto(out[:lag*ch], src[:lag*ch], src[lag*ch:2*lag*ch], ch)
	copy(out[lag*ch:], src[2*lag*ch:(frameFrames+lag)*ch])

	logrus.WithFields(logrus.Fields{
		"function":    "Stretcher.Accelerate",
		"lag":         lag,
		"correlation": corr,
	}).Debug("Accelerated frame")
	return out, frameFrames + lag, true
}

// Expand emits one frame from src while consuming only frameFrames minus the
// splice lag, repeating one lag of audio. src must hold frameFrames frames.
func (s *Stretcher) Expand(src []float32, frameFrames int) (out []float32, consumed int, ok bool) {
	available := len(src) / s.channels
	if available < frameFrames {
		return nil, 0, false
	}
	maxLag := s.MaxLag(frameFrames)
	if half := frameFrames / 2; half < maxLag {
		maxLag = half
	}
	if maxLag < s.minLag {
		return nil, 0, false
	}

	lag, corr := bestSpliceLag(mixDown(src, s.channels), s.minLag, maxLag)
	if corr < s.minCorrelation {
		return nil, 0, false
	}

	ch := s.channels
	out = make([]float32, frameFrames*ch)
	copy(out[:lag*ch], src[:lag*ch])
	crossfadeInto(out[lag*ch:2*lag*ch], src[lag*ch:2*lag*ch], src[:lag*ch], ch)
	copy(out[2*lag*ch:], src[lag*ch:(frameFrames-lag)*ch])

	logrus.WithFields(logrus.Fields{
		"function":    "Stretcher.Expand",
		"lag":         lag,
		"correlation": corr,
	}).Debug("Expanded frame")
	return out, frameFrames - lag, true
}

// crossfadeInto writes a linear fade from a to b into dst.
func crossfadeInto(dst, a, b []float32, channels int) {
	frames := len(dst) / channels
	for i := 0; i < frames; i++ {
		w := (float32(i) + 0.5) / float32(frames)
		for ch := 0; ch < channels; ch++ {
			k := i*channels + ch
			dst[k] = a[k]*(1-w) + b[k]*w
		}
	}
}
