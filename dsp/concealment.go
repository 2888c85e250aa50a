package dsp

import (
	"math"

	"github.com/sirupsen/logrus"
)

const (
	// concealDecayPerFrame is the attenuation applied per concealed frame on
	// top of the linear fade to the ceiling.
	concealDecayPerFrame = 0.9
	// historyMs is how much emitted audio the concealer keeps for pitch search.
	historyMs = 60
)

// ConcealerConfig configures a Concealer.
type ConcealerConfig struct {
	SampleRate       uint32
	Channels         int
	FrameDurationMs  uint32
	MaxConcealmentMs uint32
}

// Concealer produces replacement audio for missing packets.
//
// A concealment episode starts on the first Conceal call after real audio
// and lasts until Reset. Within an episode the same pitch period is
// repeated with a gain that falls monotonically and reaches exactly zero
// once MaxConcealmentMs of audio has been synthesized.
type Concealer struct {
	channels     int
	frameFrames  int
	minLag       int
	maxLag       int
	ceiling      int
	historyLimit int

	history []float32

	active    bool
	period    []float32
	periodLen int
	phase     int
	elapsed   int
	prolonged bool
}

// NewConcealer creates a concealer for the given stream layout.
func NewConcealer(cfg ConcealerConfig) *Concealer {
	channels := cfg.Channels
	if channels < 1 {
		channels = 1
	}
	rate := int(cfg.SampleRate)
	frameMs := cfg.FrameDurationMs
	if frameMs == 0 {
		frameMs = 10
	}
	minLag := rate / 400
	if minLag < 1 {
		minLag = 1
	}
	return &Concealer{
		channels:     channels,
		frameFrames:  rate * int(frameMs) / 1000,
		minLag:       minLag,
		maxLag:       rate / 50,
		ceiling:      rate * int(cfg.MaxConcealmentMs) / 1000,
		historyLimit: rate * historyMs / 1000,
	}
}

// Observe records emitted audio as pitch-search history. The engine calls
// it with every frame it hands to the output device.
func (c *Concealer) Observe(samples []float32) {
	c.history = append(c.history, samples...)
	limit := c.historyLimit * c.channels
	if extra := len(c.history) - limit; extra > 0 {
		c.history = append(c.history[:0], c.history[extra:]...)
	}
}

// Active reports whether a concealment episode is in progress.
func (c *Concealer) Active() bool { return c.active }

// ElapsedFrames returns the sample frames concealed in the current episode.
func (c *Concealer) ElapsedFrames() int { return c.elapsed }

// Conceal synthesizes frames sample frames of replacement audio. The second
// result is true once the episode has passed the concealment ceiling and
// the frame is pure silence.
func (c *Concealer) Conceal(frames int) ([]float32, bool) {
	if !c.active {
		c.begin()
	}
	prolonged := c.elapsed >= c.ceiling
	out := c.synthesize(frames, c.elapsed, true)
	c.elapsed += frames

	if prolonged && !c.prolonged {
		logrus.WithFields(logrus.Fields{
			"function":       "Concealer.Conceal",
			"elapsed_frames": c.elapsed,
			"ceiling":        c.ceiling,
		}).Warn("Concealment ceiling reached, output muted")
	}
	c.prolonged = prolonged
	return out, prolonged
}

// Continue returns the next frames of the concealment signal without
// advancing the episode. It is used to crossfade into real audio.
func (c *Concealer) Continue(frames int) []float32 {
	if !c.active {
		return make([]float32, frames*c.channels)
	}
	return c.synthesize(frames, c.elapsed, false)
}

// Reset ends the current concealment episode.
func (c *Concealer) Reset() {
	c.active = false
	c.period = nil
	c.periodLen = 0
	c.phase = 0
	c.elapsed = 0
	c.prolonged = false
}

// begin captures the pitch period for a new episode.
func (c *Concealer) begin() {
	c.active = true
	c.elapsed = 0
	c.phase = 0
	c.prolonged = false

	mono := mixDown(c.history, c.channels)
	lag, corr := EstimatePitch(mono, c.minLag, c.maxLag)
	if lag == 0 || meanSquare(mono) == 0 {
		c.period = nil
		c.periodLen = 0
		return
	}
	start := len(c.history) - lag*c.channels
	c.period = append([]float32(nil), c.history[start:]...)
	c.periodLen = lag

	logrus.WithFields(logrus.Fields{
		"function":    "Concealer.begin",
		"pitch_lag":   lag,
		"correlation": corr,
	}).Debug("Concealment episode started")
}

func (c *Concealer) synthesize(frames, elapsed int, advance bool) []float32 {
	out := make([]float32, frames*c.channels)
	if c.periodLen == 0 {
		return out
	}
	phase := c.phase
	for i := 0; i < frames; i++ {
		g := float32(c.gain(elapsed + i))
		if g != 0 {
			base := phase * c.channels
			for ch := 0; ch < c.channels; ch++ {
				out[i*c.channels+ch] = c.period[base+ch] * g
			}
		}
		phase++
		if phase == c.periodLen {
			phase = 0
		}
	}
	if advance {
		c.phase = phase
	}
	return out
}

// gain is the attenuation t sample frames into an episode. It is 1 at t=0,
// non-increasing, and exactly 0 from the ceiling on.
func (c *Concealer) gain(t int) float64 {
	if t >= c.ceiling {
		return 0
	}
	linear := 1 - float64(t)/float64(c.ceiling)
	if c.frameFrames <= 0 {
		return linear
	}
	return math.Pow(concealDecayPerFrame, float64(t)/float64(c.frameFrames)) * linear
}
