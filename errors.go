package neteq

import "errors"

// Sentinel errors for engine construction.
// These errors enable reliable error classification using errors.Is().

// ErrInvalidConfig wraps every construction failure.
var ErrInvalidConfig = errors.New("invalid engine configuration")

// Configuration causes.
var (
	// ErrInvalidSampleRate indicates a zero or unsupported sample rate.
	ErrInvalidSampleRate = errors.New("invalid sample rate")

	// ErrInvalidChannels indicates a channel count outside the supported range.
	ErrInvalidChannels = errors.New("invalid channel count")

	// ErrInvalidCapacity indicates an unusable max_packets_in_buffer.
	ErrInvalidCapacity = errors.New("invalid packet capacity")

	// ErrInvalidDelayWindow indicates min_delay_ms above max_delay_ms or a
	// window beyond the supported maximum.
	ErrInvalidDelayWindow = errors.New("invalid delay window")

	// ErrInvalidFrameDuration indicates a frame that is not a whole number of
	// sample frames at the configured rate.
	ErrInvalidFrameDuration = errors.New("invalid frame duration")

	// ErrInvalidTuning indicates an out-of-range tuning parameter.
	ErrInvalidTuning = errors.New("invalid tuning parameter")
)

// Lifecycle errors.
var (
	// ErrEngineClosed indicates the engine was already closed.
	ErrEngineClosed = errors.New("engine closed")
)
