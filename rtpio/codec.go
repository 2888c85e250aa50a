package rtpio

import (
	"fmt"
	"math"

	"github.com/zaf/g711"
)

// Static payload types from RFC 3551.
const (
	PayloadTypePCMU uint8 = 0
	PayloadTypePCMA uint8 = 8
)

// Frame is decoded interleaved PCM.
type Frame struct {
	Samples    []float32
	SampleRate uint32
	Channels   int
}

// Frames returns the number of sample frames.
func (f Frame) Frames() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Codec decodes one RTP payload format.
type Codec interface {
	// Name returns the encoding name as used in SDP.
	Name() string
	// ClockRate returns the RTP timestamp clock rate.
	ClockRate() uint32
	// Decode converts one payload to PCM.
	Decode(payload []byte) (Frame, error)
}

// Encoder is implemented by codecs that can also produce payloads.
type Encoder interface {
	Encode(samples []float32) ([]byte, error)
}

// G711 is the PCMU or PCMA codec at 8kHz mono.
type G711 struct {
	alaw bool
}

// NewPCMU returns a µ-law codec.
func NewPCMU() *G711 { return &G711{} }

// NewPCMA returns an A-law codec.
func NewPCMA() *G711 { return &G711{alaw: true} }

// Name implements Codec.
func (c *G711) Name() string {
	if c.alaw {
		return "PCMA"
	}
	return "PCMU"
}

// ClockRate implements Codec.
func (c *G711) ClockRate() uint32 { return 8000 }

// Decode implements Codec.
func (c *G711) Decode(payload []byte) (Frame, error) {
	if len(payload) == 0 {
		return Frame{}, ErrEmptyPacket
	}
	samples := make([]float32, len(payload))
	for i, b := range payload {
		var v int16
		if c.alaw {
			v = g711.DecodeAlawFrame(b)
		} else {
			v = g711.DecodeUlawFrame(b)
		}
		samples[i] = float32(v) / 32768
	}
	return Frame{Samples: samples, SampleRate: 8000, Channels: 1}, nil
}

// Encode implements Encoder.
func (c *G711) Encode(samples []float32) ([]byte, error) {
	out := make([]byte, len(samples))
	for i, s := range samples {
		v := toInt16(s)
		if c.alaw {
			out[i] = g711.EncodeAlawFrame(v)
		} else {
			out[i] = g711.EncodeUlawFrame(v)
		}
	}
	return out, nil
}

// L16 is RFC 3551 linear 16-bit big-endian PCM.
type L16 struct {
	rate     uint32
	channels int
}

// NewL16 returns an L16 codec for the given clock rate and channel count.
func NewL16(rate uint32, channels int) *L16 {
	if channels < 1 {
		channels = 1
	}
	return &L16{rate: rate, channels: channels}
}

// Name implements Codec.
func (c *L16) Name() string { return "L16" }

// ClockRate implements Codec.
func (c *L16) ClockRate() uint32 { return c.rate }

// Decode implements Codec.
func (c *L16) Decode(payload []byte) (Frame, error) {
	if len(payload) == 0 {
		return Frame{}, ErrEmptyPacket
	}
	if len(payload)%(2*c.channels) != 0 {
		return Frame{}, fmt.Errorf("%w: %d bytes is not whole L16 frames", ErrDecode, len(payload))
	}
	samples := make([]float32, len(payload)/2)
	for i := range samples {
		v := int16(uint16(payload[2*i])<<8 | uint16(payload[2*i+1]))
		samples[i] = float32(v) / 32768
	}
	return Frame{Samples: samples, SampleRate: c.rate, Channels: c.channels}, nil
}

// Encode implements Encoder.
func (c *L16) Encode(samples []float32) ([]byte, error) {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := uint16(toInt16(s))
		out[2*i] = byte(v >> 8)
		out[2*i+1] = byte(v)
	}
	return out, nil
}

func toInt16(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	v := math.Round(float64(s) * 32767)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	return int16(v)
}
