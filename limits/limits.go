// Package limits provides centralized audio payload limits for the playout engine.
// This ensures consistent validation across different components of the system.
package limits

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MaxChannels is the widest interleaving factor accepted anywhere.
	MaxChannels = 8

	// MaxSampleRate is the highest sample rate a Config may declare.
	MaxSampleRate = 192000

	// MaxPacketDurationMs is the longest audio span a single packet may carry.
	MaxPacketDurationMs = 120

	// MaxPacketSamples is the interleaved sample ceiling for one packet.
	MaxPacketSamples = MaxSampleRate / 1000 * MaxPacketDurationMs * MaxChannels

	// MaxPacketsInBuffer bounds the store capacity a Config may request.
	MaxPacketsInBuffer = 1000

	// MaxDelayMs bounds the delay window a Config may request (10 s).
	MaxDelayMs = 10000
)

var (
	// ErrPayloadEmpty indicates an empty payload was provided
	ErrPayloadEmpty = errors.New("empty payload")

	// ErrPayloadTooLarge indicates the payload exceeds MaxPacketSamples
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrPayloadMisaligned indicates the payload length is not a multiple of the channel count
	ErrPayloadMisaligned = errors.New("payload not aligned to channel count")

	// ErrPayloadNotFinite indicates the payload carries NaN or infinite samples
	ErrPayloadNotFinite = errors.New("payload contains non-finite samples")

	// ErrChannelCount indicates a channel count outside 1..MaxChannels
	ErrChannelCount = errors.New("invalid channel count")
)

// ValidateChannels checks that channels lies within 1..MaxChannels.
func ValidateChannels(channels int) error {
	if channels < 1 || channels > MaxChannels {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrChannelCount, channels, MaxChannels)
	}
	return nil
}

// ValidatePayloadSize validates an interleaved payload length against maxSamples.
// Returns an error with context including the actual and maximum sizes.
func ValidatePayloadSize(samples []float32, maxSamples int) error {
	if len(samples) == 0 {
		return ErrPayloadEmpty
	}
	if len(samples) > maxSamples {
		return fmt.Errorf("%w: %d samples exceeds limit %d", ErrPayloadTooLarge, len(samples), maxSamples)
	}
	return nil
}

// ValidatePayload runs every payload check used on the insertion path:
// size, channel alignment and finiteness.
func ValidatePayload(samples []float32, channels int) error {
	if err := ValidateChannels(channels); err != nil {
		return err
	}
	if err := ValidatePayloadSize(samples, MaxPacketSamples); err != nil {
		return err
	}
	if len(samples)%channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrPayloadMisaligned, len(samples), channels)
	}
	for i, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return fmt.Errorf("%w: index %d", ErrPayloadNotFinite, i)
		}
	}
	return nil
}
