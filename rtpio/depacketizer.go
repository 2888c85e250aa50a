package rtpio

import (
	"fmt"
	"math"
	"sync"

	"github.com/opd-ai/neteq/buffer"
	"github.com/opd-ai/neteq/dsp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Sink receives decoded packets. *neteq.Engine implements it.
type Sink interface {
	Insert(header rtp.Header, samples []float32, sampleRate uint32, channels int, durationMs uint32) buffer.InsertResult
}

// Config describes the sink's audio format.
type Config struct {
	SampleRate uint32
	Channels   int

	// Resampling selects the converter for payloads at another rate.
	// The filtered mode delays audio by its filter length and pads the
	// first packets with silence.
	Resampling dsp.ResampleQuality
}

// Stats counts depacketizer events.
type Stats struct {
	Packets       uint64
	DecodeErrors  uint64
	UnknownTypes  uint64
	SequenceGaps  uint64
	BytesReceived uint64
}

// Depacketizer decodes RTP audio and feeds a Sink.
type Depacketizer struct {
	mu sync.Mutex

	sink       Sink
	rate       uint32
	channels   int
	resampling dsp.ResampleQuality

	codecs     map[uint8]Codec
	resamplers map[uint8]*dsp.Resampler

	// RTP to engine timestamp mapping
	hasBase bool
	lastRTP uint32
	extRTP  int64

	lastSeq    uint16
	hasLastSeq bool

	stats Stats
}

// NewDepacketizer creates a depacketizer for sink with PCMU and PCMA
// pre-registered on their static payload types.
func NewDepacketizer(sink Sink, cfg Config) (*Depacketizer, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if cfg.SampleRate == 0 || cfg.Channels < 1 {
		return nil, fmt.Errorf("invalid sink format: %dHz, %d channels", cfg.SampleRate, cfg.Channels)
	}

	d := &Depacketizer{
		sink:       sink,
		rate:       cfg.SampleRate,
		channels:   cfg.Channels,
		resampling: cfg.Resampling,
		codecs:     make(map[uint8]Codec),
		resamplers: make(map[uint8]*dsp.Resampler),
	}
	d.codecs[PayloadTypePCMU] = NewPCMU()
	d.codecs[PayloadTypePCMA] = NewPCMA()

	logrus.WithFields(logrus.Fields{
		"function":    "NewDepacketizer",
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
	}).Info("RTP depacketizer created")

	return d, nil
}

// Register binds a codec to a payload type, replacing any previous binding.
func (d *Depacketizer) Register(payloadType uint8, codec Codec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.codecs[payloadType] = codec
	delete(d.resamplers, payloadType)
}

// Stats returns a copy of the event counters.
func (d *Depacketizer) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// HandleRTP parses and inserts one RTP datagram.
func (d *Depacketizer) HandleRTP(raw []byte) (buffer.InsertResult, error) {
	if len(raw) == 0 {
		return buffer.InsertInvalidPacket, ErrEmptyPacket
	}
	packet := &rtp.Packet{}
	if err := packet.Unmarshal(raw); err != nil {
		return buffer.InsertInvalidPacket, fmt.Errorf("failed to unmarshal RTP packet: %w", err)
	}
	return d.HandlePacket(packet)
}

// HandlePacket decodes and inserts one parsed RTP packet. Errors describe
// packets that never reached the sink; sink outcomes are returned as the
// InsertResult.
func (d *Depacketizer) HandlePacket(packet *rtp.Packet) (buffer.InsertResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Packets++
	d.stats.BytesReceived += uint64(len(packet.Payload))

	codec, ok := d.codecs[packet.PayloadType]
	if !ok {
		d.stats.UnknownTypes++
		return buffer.InsertInvalidPacket, fmt.Errorf("%w: %d", ErrUnknownPayloadType, packet.PayloadType)
	}

	frame, err := codec.Decode(packet.Payload)
	if err != nil {
		d.stats.DecodeErrors++
		logrus.WithFields(logrus.Fields{
			"function": "Depacketizer.HandlePacket",
			"codec":    codec.Name(),
			"sequence": packet.SequenceNumber,
			"error":    err.Error(),
		}).Debug("Payload decode failed")
		return buffer.InsertInvalidPacket, err
	}

	samples, err := d.convert(packet.PayloadType, frame)
	if err != nil {
		d.stats.DecodeErrors++
		return buffer.InsertInvalidPacket, err
	}

	d.trackSequence(packet.SequenceNumber)
	header := packet.Header
	header.Timestamp = d.mapTimestamp(packet.Timestamp, codec.ClockRate())

	return d.sink.Insert(header, samples, d.rate, d.channels, 0), nil
}

// convert brings decoded audio to the sink's channel count and rate. The
// output length is fixed to the exact converted duration so consecutive
// packets tile the media clock without gaps.
func (d *Depacketizer) convert(payloadType uint8, frame Frame) ([]float32, error) {
	samples, err := remix(frame.Samples, frame.Channels, d.channels)
	if err != nil {
		return nil, err
	}
	if frame.SampleRate == d.rate {
		return samples, nil
	}

	r := d.resamplers[payloadType]
	if r == nil || r.InputRate() != frame.SampleRate {
		r, err = dsp.NewResampler(dsp.ResamplerConfig{
			InputRate:  frame.SampleRate,
			OutputRate: d.rate,
			Channels:   d.channels,
			Quality:    d.resampling,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		d.resamplers[payloadType] = r
	}

	out, err := r.Resample(samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	want := int(math.Round(float64(frame.Frames()) * float64(d.rate) / float64(frame.SampleRate)))
	return fitFrames(out, want, d.channels), nil
}

// mapTimestamp converts an RTP timestamp at clockRate into the sink's media
// clock, keeping an extended counter across wraparound.
func (d *Depacketizer) mapTimestamp(ts uint32, clockRate uint32) uint32 {
	if !d.hasBase {
		d.hasBase = true
		d.lastRTP = ts
		d.extRTP = 0
	} else {
		d.extRTP += int64(int32(ts - d.lastRTP))
		d.lastRTP = ts
	}
	if clockRate == 0 || clockRate == d.rate {
		return uint32(d.extRTP)
	}
	return uint32(d.extRTP * int64(d.rate) / int64(clockRate))
}

func (d *Depacketizer) trackSequence(seq uint16) {
	if d.hasLastSeq && seq != d.lastSeq+1 {
		d.stats.SequenceGaps++
		logrus.WithFields(logrus.Fields{
			"function":          "Depacketizer.trackSequence",
			"expected_sequence": d.lastSeq + 1,
			"received_sequence": seq,
		}).Debug("Sequence discontinuity in RTP stream")
	}
	d.lastSeq = seq
	d.hasLastSeq = true
}

// remix maps interleaved audio between channel counts. Mono is duplicated
// to every output channel; anything is averaged down to mono.
func remix(samples []float32, from, to int) ([]float32, error) {
	if from == to {
		return samples, nil
	}
	if from < 1 || len(samples)%from != 0 {
		return nil, fmt.Errorf("%w: %d samples in %d channels", ErrChannelLayout, len(samples), from)
	}
	frames := len(samples) / from
	switch {
	case from == 1:
		out := make([]float32, frames*to)
		for i := 0; i < frames; i++ {
			for ch := 0; ch < to; ch++ {
				out[i*to+ch] = samples[i]
			}
		}
		return out, nil
	case to == 1:
		out := make([]float32, frames)
		for i := 0; i < frames; i++ {
			var sum float32
			for ch := 0; ch < from; ch++ {
				sum += samples[i*from+ch]
			}
			out[i] = sum / float32(from)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d to %d channels", ErrChannelLayout, from, to)
	}
}

// fitFrames pads by holding the last frame, or truncates, to exactly want
// sample frames.
func fitFrames(samples []float32, want, channels int) []float32 {
	have := len(samples) / channels
	if have == want {
		return samples
	}
	if have > want {
		return samples[:want*channels]
	}
	out := make([]float32, want*channels)
	copy(out, samples)
	if have == 0 {
		return out
	}
	last := samples[(have-1)*channels : have*channels]
	for i := have; i < want; i++ {
		copy(out[i*channels:], last)
	}
	return out
}
