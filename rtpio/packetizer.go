package rtpio

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Packetizer turns PCM frames into RTP packets for one outgoing stream.
type Packetizer struct {
	mu             sync.Mutex
	ssrc           uint32
	sequenceNumber uint16
	timestamp      uint32
	payloadType    uint8
	channels       int
	codec          Codec
	encoder        Encoder
	marker         bool
}

// NewPacketizer creates a packetizer for an encodable codec. The SSRC and
// initial sequence number and timestamp are random, as RFC 3550 requires.
func NewPacketizer(payloadType uint8, codec Codec, channels int) (*Packetizer, error) {
	enc, ok := codec.(Encoder)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEncodeUnsupported, codec.Name())
	}
	if channels < 1 {
		channels = 1
	}

	var seed [10]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to generate RTP stream identifiers: %w", err)
	}

	p := &Packetizer{
		ssrc:           binary.BigEndian.Uint32(seed[0:4]),
		sequenceNumber: binary.BigEndian.Uint16(seed[4:6]),
		timestamp:      binary.BigEndian.Uint32(seed[6:10]),
		payloadType:    payloadType,
		channels:       channels,
		codec:          codec,
		encoder:        enc,
		marker:         true,
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewPacketizer",
		"ssrc":         p.ssrc,
		"payload_type": payloadType,
		"codec":        codec.Name(),
	}).Debug("Created RTP packetizer")

	return p, nil
}

// SSRC returns the stream's synchronization source.
func (p *Packetizer) SSRC() uint32 {
	return p.ssrc
}

// Packetize encodes one frame of interleaved PCM into the next RTP packet.
// The timestamp advances by the frame's sample count at the codec clock.
func (p *Packetizer) Packetize(samples []float32) (*rtp.Packet, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyPacket
	}
	payload, err := p.encoder.Encode(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.codec.Name(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         p.marker,
			PayloadType:    p.payloadType,
			SequenceNumber: p.sequenceNumber,
			Timestamp:      p.timestamp,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}

	p.marker = false
	p.sequenceNumber++
	p.timestamp += uint32(len(samples) / p.channels)
	return packet, nil
}

// PacketizeBytes is Packetize followed by Marshal.
func (p *Packetizer) PacketizeBytes(samples []float32) ([]byte, error) {
	packet, err := p.Packetize(samples)
	if err != nil {
		return nil, err
	}
	raw, err := packet.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RTP packet: %w", err)
	}
	return raw, nil
}
