package rtpio

import (
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// maxOpusFrameSamples is 120ms of stereo audio at 48kHz.
const maxOpusFrameSamples = 5760 * 2

// Opus decodes RFC 7587 payloads with the pure Go pion/opus decoder.
type Opus struct {
	decoder opus.Decoder
	out     []byte
}

// NewOpus returns an Opus codec.
func NewOpus() *Opus {
	return &Opus{
		decoder: opus.NewDecoder(),
		out:     make([]byte, maxOpusFrameSamples*2),
	}
}

// Name implements Codec.
func (c *Opus) Name() string { return "opus" }

// ClockRate implements Codec. Opus RTP always uses a 48kHz clock.
func (c *Opus) ClockRate() uint32 { return 48000 }

// Decode implements Codec.
func (c *Opus) Decode(payload []byte) (Frame, error) {
	if len(payload) == 0 {
		return Frame{}, ErrEmptyPacket
	}
	durationUs, err := opusPacketDurationUs(payload)
	if err != nil {
		return Frame{}, err
	}

	bandwidth, isStereo, err := c.decoder.Decode(payload, c.out)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: opus: %v", ErrDecode, err)
	}

	channels := 1
	if isStereo {
		channels = 2
	}
	rate := uint32(bandwidth.SampleRate())
	count := int(uint64(rate)*uint64(durationUs)/1000000) * channels
	if count*2 > len(c.out) {
		count = len(c.out) / 2
	}

	samples := make([]float32, count)
	for i := range samples {
		v := int16(c.out[2*i]) | int16(c.out[2*i+1])<<8
		samples[i] = float32(v) / 32768
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Opus.Decode",
		"bandwidth":   bandwidth.String(),
		"is_stereo":   isStereo,
		"duration_us": durationUs,
	}).Debug("Opus payload decoded")

	return Frame{Samples: samples, SampleRate: rate, Channels: channels}, nil
}

// opusFrameUs gives the frame duration per TOC configuration (RFC 6716 3.1).
var opusFrameUs = [32]int{
	10000, 20000, 40000, 60000, // SILK NB
	10000, 20000, 40000, 60000, // SILK MB
	10000, 20000, 40000, 60000, // SILK WB
	10000, 20000, // Hybrid SWB
	10000, 20000, // Hybrid FB
	2500, 5000, 10000, 20000, // CELT NB
	2500, 5000, 10000, 20000, // CELT WB
	2500, 5000, 10000, 20000, // CELT SWB
	2500, 5000, 10000, 20000, // CELT FB
}

// opusPacketDurationUs returns the audio duration of an Opus packet from its
// TOC byte and frame count.
func opusPacketDurationUs(payload []byte) (int, error) {
	if len(payload) == 0 {
		return 0, ErrEmptyPacket
	}
	toc := payload[0]
	frameUs := opusFrameUs[toc>>3]

	frames := 1
	switch toc & 0x03 {
	case 1, 2:
		frames = 2
	case 3:
		if len(payload) < 2 {
			return 0, fmt.Errorf("%w: opus code 3 packet without frame count", ErrDecode)
		}
		frames = int(payload[1] & 0x3F)
		if frames == 0 {
			return 0, fmt.Errorf("%w: opus packet with zero frames", ErrDecode)
		}
	}

	total := frameUs * frames
	if total > 120000 {
		return 0, fmt.Errorf("%w: opus packet of %dus exceeds 120ms", ErrDecode, total)
	}
	return total, nil
}
