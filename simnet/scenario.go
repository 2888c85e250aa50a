package simnet

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidScenario is wrapped by every Scenario validation error.
var ErrInvalidScenario = errors.New("invalid scenario")

// Codec names accepted by Scenario.Codec. CodecPCM hands samples to the
// engine directly; the others go through RTP.
const (
	CodecPCM  = "pcm"
	CodecPCMU = "pcmu"
	CodecPCMA = "pcma"
	CodecL16  = "l16"
)

// Scenario describes one simulated stream.
type Scenario struct {
	Duration time.Duration `yaml:"duration"`  // Sending time (default: 5s)
	PacketMs uint32        `yaml:"packet_ms"` // Audio per packet (default: 20)

	BaseDelayMs   float64 `yaml:"base_delay_ms"`  // One-way delay every packet sees
	JitterMs      float64 `yaml:"jitter_ms"`      // Extra delay drawn uniformly from [0, JitterMs]
	LossRate      float64 `yaml:"loss_rate"`      // Probability a packet is dropped
	ReorderRate   float64 `yaml:"reorder_rate"`   // Probability a packet is held back two packet times
	DuplicateRate float64 `yaml:"duplicate_rate"` // Probability a packet is delivered twice

	ToneHz    float64 `yaml:"tone_hz"`   // Test tone frequency (default: 440)
	Amplitude float64 `yaml:"amplitude"` // Test tone amplitude (default: 0.5)
	Codec     string  `yaml:"codec"`     // pcm, pcmu, pcma or l16 (default: pcm)

	// FilteredResampling converts narrowband codecs with a polyphase
	// filter instead of linear interpolation.
	FilteredResampling bool `yaml:"filtered_resampling"`

	Seed    int64 `yaml:"seed"`
	Capture bool  `yaml:"capture"` // Keep the played audio in the report
}

func (s Scenario) withDefaults() Scenario {
	if s.Duration == 0 {
		s.Duration = 5 * time.Second
	}
	if s.PacketMs == 0 {
		s.PacketMs = 20
	}
	if s.ToneHz == 0 {
		s.ToneHz = 440
	}
	if s.Amplitude == 0 {
		s.Amplitude = 0.5
	}
	if s.Codec == "" {
		s.Codec = CodecPCM
	}
	return s
}

// Validate checks the scenario after defaults are applied.
func (s Scenario) Validate() error {
	s = s.withDefaults()

	if s.Duration < 0 {
		return fmt.Errorf("%w: negative duration %v", ErrInvalidScenario, s.Duration)
	}
	if s.PacketMs > 120 {
		return fmt.Errorf("%w: packet_ms %d exceeds 120", ErrInvalidScenario, s.PacketMs)
	}
	if s.BaseDelayMs < 0 || s.JitterMs < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidScenario)
	}
	for name, p := range map[string]float64{
		"loss_rate":      s.LossRate,
		"reorder_rate":   s.ReorderRate,
		"duplicate_rate": s.DuplicateRate,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s %.3f outside [0, 1]", ErrInvalidScenario, name, p)
		}
	}
	if s.Amplitude < 0 || s.Amplitude > 1 {
		return fmt.Errorf("%w: amplitude %.3f outside [0, 1]", ErrInvalidScenario, s.Amplitude)
	}
	switch s.Codec {
	case CodecPCM, CodecPCMU, CodecPCMA, CodecL16:
	default:
		return fmt.Errorf("%w: unknown codec %q", ErrInvalidScenario, s.Codec)
	}
	return nil
}
