package limits

import (
	"errors"
	"math"
	"testing"
)

// TestMaxPacketSamplesCalculation verifies that MaxPacketSamples is derived
// from the rate, duration and channel ceilings.
func TestMaxPacketSamplesCalculation(t *testing.T) {
	expected := MaxSampleRate / 1000 * MaxPacketDurationMs * MaxChannels
	if MaxPacketSamples != expected {
		t.Errorf("MaxPacketSamples = %d, want %d", MaxPacketSamples, expected)
	}
}

func TestValidateChannels(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		wantErr  bool
	}{
		{"zero channels", 0, true},
		{"mono", 1, false},
		{"stereo", 2, false},
		{"max channels", MaxChannels, false},
		{"too many channels", MaxChannels + 1, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChannels(tt.channels)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChannels(%d) error = %v, wantErr %v", tt.channels, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrChannelCount) {
				t.Errorf("expected ErrChannelCount, got %v", err)
			}
		})
	}
}

func TestValidatePayload(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name     string
		samples  []float32
		channels int
		wantErr  error
	}{
		{"valid mono", []float32{0.1, 0.2, 0.3}, 1, nil},
		{"valid stereo", []float32{0.1, 0.2, 0.3, 0.4}, 2, nil},
		{"empty", nil, 1, ErrPayloadEmpty},
		{"misaligned stereo", []float32{0.1, 0.2, 0.3}, 2, ErrPayloadMisaligned},
		{"nan sample", []float32{0.1, nan}, 1, ErrPayloadNotFinite},
		{"inf sample", []float32{inf}, 1, ErrPayloadNotFinite},
		{"bad channel count", []float32{0.1}, 0, ErrChannelCount},
		{"too large", make([]float32, MaxPacketSamples+1), 1, ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.samples, tt.channels)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePayload() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePayloadSizeBoundaries(t *testing.T) {
	if err := ValidatePayloadSize(make([]float32, 10), 10); err != nil {
		t.Errorf("payload at exact limit should pass: %v", err)
	}
	if err := ValidatePayloadSize(make([]float32, 11), 10); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("payload above limit should fail with ErrPayloadTooLarge, got %v", err)
	}
}
