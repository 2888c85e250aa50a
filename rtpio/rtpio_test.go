package rtpio

import (
	"errors"
	"math"
	"testing"

	"github.com/opd-ai/neteq/buffer"
	"github.com/opd-ai/neteq/dsp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insertCall struct {
	header     rtp.Header
	samples    []float32
	sampleRate uint32
	channels   int
	durationMs uint32
}

type recordingSink struct {
	calls []insertCall
}

func (s *recordingSink) Insert(header rtp.Header, samples []float32, sampleRate uint32, channels int, durationMs uint32) buffer.InsertResult {
	s.calls = append(s.calls, insertCall{header, samples, sampleRate, channels, durationMs})
	return buffer.InsertOK
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%100)/100 - 0.5
	}
	return out
}

func TestG711RoundTrip(t *testing.T) {
	for _, codec := range []*G711{NewPCMU(), NewPCMA()} {
		t.Run(codec.Name(), func(t *testing.T) {
			in := ramp(160)
			payload, err := codec.Encode(in)
			require.NoError(t, err)
			require.Len(t, payload, 160)

			frame, err := codec.Decode(payload)
			require.NoError(t, err)
			assert.Equal(t, uint32(8000), frame.SampleRate)
			assert.Equal(t, 1, frame.Channels)
			assert.Equal(t, 160, frame.Frames())
			for i := range in {
				assert.InDelta(t, in[i], frame.Samples[i], 0.02, "sample %d", i)
			}
		})
	}

	_, err := NewPCMU().Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyPacket)
}

func TestL16(t *testing.T) {
	codec := NewL16(16000, 2)
	payload, err := codec.Encode([]float32{0.5, -0.5, 1, -1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x00, 0xc0, 0x00, 0x7f, 0xff, 0x80, 0x01}, payload)

	frame, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Frames())
	assert.InDelta(t, 0.5, frame.Samples[0], 1e-4)
	assert.InDelta(t, -1, frame.Samples[3], 1e-4)

	_, err = codec.Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestOpusPacketDuration(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    int
		wantErr bool
	}{
		{"silk nb 10ms", []byte{0 << 3}, 10000, false},
		{"silk wb 20ms", []byte{9 << 3}, 20000, false},
		{"silk mb 60ms", []byte{7 << 3}, 60000, false},
		{"celt fb 2.5ms", []byte{28 << 3}, 2500, false},
		{"two frames", []byte{1<<3 | 1}, 40000, false},
		{"code 3 three frames", []byte{1<<3 | 3, 3}, 60000, false},
		{"code 3 missing count", []byte{1<<3 | 3}, 0, true},
		{"code 3 too long", []byte{3<<3 | 3, 3}, 0, true},
		{"empty", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := opusPacketDurationUs(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpusRejectsEmpty(t *testing.T) {
	c := NewOpus()
	assert.Equal(t, uint32(48000), c.ClockRate())
	_, err := c.Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyPacket)
}

func TestDepacketizerPCMUUpsamples(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDepacketizer(sink, Config{SampleRate: 48000, Channels: 1})
	require.NoError(t, err)

	p, err := NewPacketizer(PayloadTypePCMU, NewPCMU(), 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		raw, err := p.PacketizeBytes(ramp(160))
		require.NoError(t, err)
		res, err := d.HandleRTP(raw)
		require.NoError(t, err)
		assert.Equal(t, buffer.InsertOK, res)
	}

	require.Len(t, sink.calls, 3)
	for i, call := range sink.calls {
		assert.Len(t, call.samples, 960, "20ms at 48kHz")
		assert.Equal(t, uint32(48000), call.sampleRate)
		assert.Equal(t, uint32(i*960), call.header.Timestamp)
		assert.Equal(t, p.SSRC(), call.header.SSRC)
	}
	assert.True(t, sink.calls[0].header.Marker)
	assert.False(t, sink.calls[1].header.Marker)
	assert.Zero(t, d.Stats().SequenceGaps)
}

func TestDepacketizerFilteredResampling(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDepacketizer(sink, Config{SampleRate: 16000, Channels: 1, Resampling: dsp.ResampleHigh})
	require.NoError(t, err)

	p, err := NewPacketizer(PayloadTypePCMA, NewPCMA(), 1)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		raw, err := p.PacketizeBytes(ramp(160))
		require.NoError(t, err)
		res, err := d.HandleRTP(raw)
		require.NoError(t, err)
		assert.Equal(t, buffer.InsertOK, res)
	}

	require.Len(t, sink.calls, 5)
	for i, call := range sink.calls {
		assert.Len(t, call.samples, 320, "20ms at 16kHz")
		assert.Equal(t, uint32(i*320), call.header.Timestamp)
		for _, v := range call.samples {
			assert.False(t, math.IsNaN(float64(v)))
		}
	}
}

func TestDepacketizerL16SameRate(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDepacketizer(sink, Config{SampleRate: 48000, Channels: 1})
	require.NoError(t, err)
	d.Register(96, NewL16(48000, 1))

	p, err := NewPacketizer(96, NewL16(48000, 1), 1)
	require.NoError(t, err)
	pkt, err := p.Packetize(ramp(480))
	require.NoError(t, err)

	_, err = d.HandlePacket(pkt)
	require.NoError(t, err)
	require.Len(t, sink.calls, 1)
	for i, v := range ramp(480) {
		assert.InDelta(t, v, sink.calls[0].samples[i], 1e-4)
	}
}

func TestDepacketizerRemixesStereo(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDepacketizer(sink, Config{SampleRate: 8000, Channels: 1})
	require.NoError(t, err)
	d.Register(97, NewL16(8000, 2))

	payload, err := NewL16(8000, 2).Encode([]float32{0.5, 0.25, -0.5, -0.25})
	require.NoError(t, err)
	_, err = d.HandlePacket(&rtp.Packet{Header: rtp.Header{Version: 2, PayloadType: 97}, Payload: payload})
	require.NoError(t, err)

	require.Len(t, sink.calls, 1)
	require.Len(t, sink.calls[0].samples, 2)
	assert.InDelta(t, 0.375, sink.calls[0].samples[0], 1e-4)
	assert.InDelta(t, -0.375, sink.calls[0].samples[1], 1e-4)
}

func TestDepacketizerErrors(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDepacketizer(sink, Config{SampleRate: 48000, Channels: 1})
	require.NoError(t, err)

	res, err := d.HandleRTP(nil)
	assert.ErrorIs(t, err, ErrEmptyPacket)
	assert.Equal(t, buffer.InsertInvalidPacket, res)

	_, err = d.HandleRTP([]byte{0x80})
	assert.Error(t, err)

	_, err = d.HandlePacket(&rtp.Packet{Header: rtp.Header{Version: 2, PayloadType: 42}, Payload: []byte{1}})
	assert.True(t, errors.Is(err, ErrUnknownPayloadType))

	_, err = d.HandlePacket(&rtp.Packet{Header: rtp.Header{Version: 2, PayloadType: PayloadTypePCMU}})
	assert.ErrorIs(t, err, ErrEmptyPacket)

	assert.Empty(t, sink.calls)
	s := d.Stats()
	assert.Equal(t, uint64(1), s.UnknownTypes)
	assert.Equal(t, uint64(1), s.DecodeErrors)

	_, err = NewDepacketizer(nil, Config{SampleRate: 48000, Channels: 1})
	assert.Error(t, err)
	_, err = NewDepacketizer(sink, Config{})
	assert.Error(t, err)
}

func TestDepacketizerTimestampWrapAndGaps(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDepacketizer(sink, Config{SampleRate: 8000, Channels: 1})
	require.NoError(t, err)

	payload, err := NewPCMU().Encode(ramp(160))
	require.NoError(t, err)

	send := func(seq uint16, ts uint32) {
		_, err := d.HandlePacket(&rtp.Packet{
			Header:  rtp.Header{Version: 2, PayloadType: PayloadTypePCMU, SequenceNumber: seq, Timestamp: ts},
			Payload: payload,
		})
		require.NoError(t, err)
	}
	send(65535, math.MaxUint32-159)
	send(0, 0)
	send(2, 320)

	require.Len(t, sink.calls, 3)
	assert.Equal(t, uint32(0), sink.calls[0].header.Timestamp)
	assert.Equal(t, uint32(160), sink.calls[1].header.Timestamp)
	assert.Equal(t, uint32(480), sink.calls[2].header.Timestamp)
	assert.Equal(t, uint64(1), d.Stats().SequenceGaps)
}

func TestPacketizerRequiresEncoder(t *testing.T) {
	_, err := NewPacketizer(111, NewOpus(), 1)
	assert.ErrorIs(t, err, ErrEncodeUnsupported)

	p, err := NewPacketizer(0, NewPCMU(), 1)
	require.NoError(t, err)
	_, err = p.Packetize(nil)
	assert.ErrorIs(t, err, ErrEmptyPacket)

	first, err := p.Packetize(ramp(160))
	require.NoError(t, err)
	second, err := p.Packetize(ramp(160))
	require.NoError(t, err)
	assert.Equal(t, first.SequenceNumber+1, second.SequenceNumber)
	assert.Equal(t, first.Timestamp+160, second.Timestamp)
}

func TestFitFramesAndRemix(t *testing.T) {
	assert.Equal(t, []float32{1, 2, 2}, fitFrames([]float32{1, 2}, 3, 1))
	assert.Equal(t, []float32{1, 2}, fitFrames([]float32{1, 2, 3}, 2, 1))
	assert.Equal(t, []float32{0, 0}, fitFrames(nil, 1, 2))

	out, err := remix([]float32{0.1, 0.2}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.1, 0.2, 0.2}, out)

	_, err = remix(make([]float32, 6), 3, 2)
	assert.ErrorIs(t, err, ErrChannelLayout)
}
