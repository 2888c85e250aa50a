package neteq

import (
	"fmt"

	"github.com/opd-ai/neteq/limits"
)

// Config holds the parameters of one engine. It is copied at construction
// and never changes afterwards.
type Config struct {
	SampleRate         uint32 `yaml:"sample_rate"`
	Channels           int    `yaml:"channels"`
	MaxPacketsInBuffer int    `yaml:"max_packets_in_buffer"`
	MaxDelayMs         uint32 `yaml:"max_delay_ms"`
	MinDelayMs         uint32 `yaml:"min_delay_ms"`
	AdditionalDelayMs  uint32 `yaml:"additional_delay_ms"`

	// Tuning. Zero values select the defaults.
	FrameDurationMs       uint32  `yaml:"frame_duration_ms"`       // Output frame length (default: 10ms)
	MaxConcealmentMs      uint32  `yaml:"max_concealment_ms"`      // Fade-to-silence ceiling (default: 200ms)
	MaxStretchRatio       float64 `yaml:"max_stretch_ratio"`       // Max time-scale change per frame (default: 0.2)
	HysteresisMs          uint32  `yaml:"hysteresis_ms"`           // Level band around the target (default: 10ms)
	StretchIntervalFrames int     `yaml:"stretch_interval_frames"` // Frames between stretches (default: 5)
	JitterMultiplier      float64 `yaml:"jitter_multiplier"`       // Jitter to margin factor (default: 3)
	LossMarginMs          float64 `yaml:"loss_margin_ms"`          // Extra delay at 100% loss (default: 80ms)
	TargetIncreaseStepMs  float64 `yaml:"target_increase_step_ms"` // Max target rise per frame (default: 5ms)
	TargetDecreaseStepMs  float64 `yaml:"target_decrease_step_ms"` // Max target fall per frame (default: 1ms)
	LossWindowPackets     int     `yaml:"loss_window_packets"`     // Loss rate window in frames (default: 50)
}

// DefaultConfig returns a 48kHz mono configuration with a 20-200ms delay
// window and the stock tuning.
func DefaultConfig() Config {
	return Config{
		SampleRate:            48000,
		Channels:              1,
		MaxPacketsInBuffer:    50,
		MaxDelayMs:            200,
		MinDelayMs:            20,
		AdditionalDelayMs:     0,
		FrameDurationMs:       10,
		MaxConcealmentMs:      200,
		MaxStretchRatio:       0.2,
		HysteresisMs:          10,
		StretchIntervalFrames: 5,
		JitterMultiplier:      3,
		LossMarginMs:          80,
		TargetIncreaseStepMs:  5,
		TargetDecreaseStepMs:  1,
		LossWindowPackets:     50,
	}
}

// withDefaults returns a copy with zero tuning fields filled in.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FrameDurationMs == 0 {
		c.FrameDurationMs = d.FrameDurationMs
	}
	if c.MaxConcealmentMs == 0 {
		c.MaxConcealmentMs = d.MaxConcealmentMs
	}
	if c.MaxStretchRatio == 0 {
		c.MaxStretchRatio = d.MaxStretchRatio
	}
	if c.HysteresisMs == 0 {
		c.HysteresisMs = d.HysteresisMs
	}
	if c.StretchIntervalFrames == 0 {
		c.StretchIntervalFrames = d.StretchIntervalFrames
	}
	if c.JitterMultiplier == 0 {
		c.JitterMultiplier = d.JitterMultiplier
	}
	if c.LossMarginMs == 0 {
		c.LossMarginMs = d.LossMarginMs
	}
	if c.TargetIncreaseStepMs == 0 {
		c.TargetIncreaseStepMs = d.TargetIncreaseStepMs
	}
	if c.TargetDecreaseStepMs == 0 {
		c.TargetDecreaseStepMs = d.TargetDecreaseStepMs
	}
	if c.LossWindowPackets == 0 {
		c.LossWindowPackets = d.LossWindowPackets
	}
	return c
}

// Validate checks the configuration after defaults are applied. Every
// error wraps ErrInvalidConfig and a specific cause.
func (c Config) Validate() error {
	c = c.withDefaults()

	if c.SampleRate == 0 || c.SampleRate > limits.MaxSampleRate {
		return invalid(ErrInvalidSampleRate, "sample_rate %d", c.SampleRate)
	}
	if err := limits.ValidateChannels(c.Channels); err != nil {
		return invalid(ErrInvalidChannels, "channels %d", c.Channels)
	}
	if c.MaxPacketsInBuffer < 1 || c.MaxPacketsInBuffer > limits.MaxPacketsInBuffer {
		return invalid(ErrInvalidCapacity, "max_packets_in_buffer %d (must be 1-%d)", c.MaxPacketsInBuffer, limits.MaxPacketsInBuffer)
	}
	if c.MinDelayMs > c.MaxDelayMs {
		return invalid(ErrInvalidDelayWindow, "min_delay_ms %d exceeds max_delay_ms %d", c.MinDelayMs, c.MaxDelayMs)
	}
	if uint64(c.MaxDelayMs)+uint64(c.AdditionalDelayMs) > limits.MaxDelayMs {
		return invalid(ErrInvalidDelayWindow, "max_delay_ms + additional_delay_ms exceeds %d", limits.MaxDelayMs)
	}
	if c.FrameDurationMs > limits.MaxPacketDurationMs || (uint64(c.SampleRate)*uint64(c.FrameDurationMs))%1000 != 0 {
		return invalid(ErrInvalidFrameDuration, "%dms at %dHz", c.FrameDurationMs, c.SampleRate)
	}
	if c.MaxStretchRatio < 0 || c.MaxStretchRatio > 0.5 {
		return invalid(ErrInvalidTuning, "max_stretch_ratio %.3f (must be 0-0.5)", c.MaxStretchRatio)
	}
	if c.StretchIntervalFrames < 0 || c.LossWindowPackets < 0 {
		return invalid(ErrInvalidTuning, "negative frame count")
	}
	if c.JitterMultiplier < 0 || c.LossMarginMs < 0 || c.TargetIncreaseStepMs < 0 || c.TargetDecreaseStepMs < 0 {
		return invalid(ErrInvalidTuning, "negative delay tuning")
	}
	return nil
}

// frameFrames returns the sample frames per output frame.
func (c Config) frameFrames() int {
	return int(c.SampleRate) * int(c.FrameDurationMs) / 1000
}

func invalid(cause error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, cause, fmt.Sprintf(format, args...))
}
