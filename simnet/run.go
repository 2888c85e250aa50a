package simnet

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/opd-ai/neteq"
	"github.com/opd-ai/neteq/buffer"
	"github.com/opd-ai/neteq/dsp"
	"github.com/opd-ai/neteq/rtpio"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// payloadTypeL16 is the dynamic payload type used for L16 streams.
const payloadTypeL16 = 96

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Report summarizes one simulation run.
type Report struct {
	Scenario Scenario

	PacketsSent       int
	PacketsLost       int
	PacketsReordered  int
	PacketsDuplicated int
	InsertResults     map[buffer.InsertResult]int

	Frames           int
	MinTargetDelayMs uint32
	MaxTargetDelayMs uint32
	MeanBufferMs     float64

	Statistics neteq.Statistics
	Audio      []float32 // interleaved output, only with Scenario.Capture
}

// Fields returns the headline numbers for structured logging.
func (r Report) Fields() logrus.Fields {
	return logrus.Fields{
		"packets_sent":        r.PacketsSent,
		"packets_lost":        r.PacketsLost,
		"packets_reordered":   r.PacketsReordered,
		"packets_duplicated":  r.PacketsDuplicated,
		"frames":              r.Frames,
		"frames_concealed":    r.Statistics.FramesConcealed,
		"frames_accelerated":  r.Statistics.FramesAccelerated,
		"frames_expanded":     r.Statistics.FramesExpanded,
		"jitter_ms":           r.Statistics.JitterMs,
		"target_delay_ms":     r.Statistics.TargetDelayMs,
		"min_target_delay_ms": r.MinTargetDelayMs,
		"max_target_delay_ms": r.MaxTargetDelayMs,
		"mean_buffer_ms":      r.MeanBufferMs,
		"quality":             r.Statistics.Quality().String(),
	}
}

type packet struct {
	header  rtp.Header
	samples []float32
	raw     []byte
}

type delivery struct {
	at     time.Duration
	packet packet
}

// source produces the talker's packets and hands arrivals to the engine.
type source struct {
	engine     *neteq.Engine
	config     neteq.Config
	durationMs uint32
	frames     int
	tone       *Tone

	header rtp.Header

	packetizer   *rtpio.Packetizer
	depacketizer *rtpio.Depacketizer
}

func newSource(engine *neteq.Engine, sc Scenario, rng *rand.Rand) (*source, error) {
	cfg := engine.Config()
	s := &source{
		engine:     engine,
		config:     cfg,
		durationMs: sc.PacketMs,
	}

	var codec rtpio.Codec
	var payloadType uint8
	rate, channels := cfg.SampleRate, cfg.Channels

	switch sc.Codec {
	case CodecPCM:
		s.header = rtp.Header{
			Version:        2,
			Marker:         true,
			SequenceNumber: uint16(rng.Intn(1 << 16)),
			Timestamp:      rng.Uint32(),
			SSRC:           rng.Uint32(),
		}
	case CodecPCMU:
		codec, payloadType, rate, channels = rtpio.NewPCMU(), rtpio.PayloadTypePCMU, 8000, 1
	case CodecPCMA:
		codec, payloadType, rate, channels = rtpio.NewPCMA(), rtpio.PayloadTypePCMA, 8000, 1
	case CodecL16:
		codec, payloadType = rtpio.NewL16(cfg.SampleRate, cfg.Channels), payloadTypeL16
	}

	if codec != nil {
		var err error
		s.packetizer, err = rtpio.NewPacketizer(payloadType, codec, channels)
		if err != nil {
			return nil, err
		}
		quality := dsp.ResampleLinear
		if sc.FilteredResampling {
			quality = dsp.ResampleHigh
		}
		s.depacketizer, err = rtpio.NewDepacketizer(engine, rtpio.Config{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Resampling: quality,
		})
		if err != nil {
			return nil, err
		}
		s.depacketizer.Register(payloadType, codec)
	}

	s.frames = int(rate) * int(sc.PacketMs) / 1000
	s.tone = NewTone(sc.ToneHz, sc.Amplitude, rate, channels)
	return s, nil
}

func (s *source) next() (packet, error) {
	samples := s.tone.Next(s.frames)
	if s.packetizer != nil {
		raw, err := s.packetizer.PacketizeBytes(samples)
		if err != nil {
			return packet{}, err
		}
		return packet{raw: raw}, nil
	}

	p := packet{header: s.header, samples: samples}
	s.header.Marker = false
	s.header.SequenceNumber++
	s.header.Timestamp += uint32(s.frames)
	return p, nil
}

func (s *source) deliver(p packet) buffer.InsertResult {
	if p.raw == nil {
		return s.engine.Insert(p.header, p.samples, s.config.SampleRate, s.config.Channels, s.durationMs)
	}
	result, err := s.depacketizer.HandleRTP(p.raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "simnet.deliver",
			"error":    err.Error(),
		}).Debug("Simulated packet rejected before insertion")
	}
	return result
}

// Run plays sc through engine and reports what happened. The engine's
// time source is replaced by a virtual clock; playout is pulled once per
// output frame for the scenario's duration.
func Run(engine *neteq.Engine, sc Scenario) (Report, error) {
	if engine == nil {
		return Report{}, fmt.Errorf("engine cannot be nil")
	}
	sc = sc.withDefaults()
	if err := sc.Validate(); err != nil {
		return Report{}, err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "simnet.Run",
		"engine_id": engine.ID().String(),
		"duration":  sc.Duration.String(),
		"codec":     sc.Codec,
		"jitter_ms": sc.JitterMs,
		"loss_rate": sc.LossRate,
		"seed":      sc.Seed,
	}).Info("Starting simulation")

	rng := rand.New(rand.NewSource(sc.Seed))
	src, err := newSource(engine, sc, rng)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Scenario:      sc,
		InsertResults: make(map[buffer.InsertResult]int),
	}
	deliveries, err := schedule(sc, src, rng, &report)
	if err != nil {
		return Report{}, err
	}

	clock := NewClock(epoch)
	engine.SetTimeProvider(clock)

	frame := time.Duration(engine.Config().FrameDurationMs) * time.Millisecond
	ticks := int(sc.Duration / frame)
	var bufferSum float64
	next := 0

	for tick := 0; tick < ticks; tick++ {
		now := time.Duration(tick) * frame
		for next < len(deliveries) && deliveries[next].at <= now {
			clock.Set(epoch.Add(deliveries[next].at))
			report.InsertResults[src.deliver(deliveries[next].packet)]++
			next++
		}
		clock.Set(epoch.Add(now))

		out := engine.GetAudioFrame()
		if sc.Capture {
			report.Audio = append(report.Audio, out...)
		}

		target := engine.TargetDelayMs()
		if report.Frames == 0 || target < report.MinTargetDelayMs {
			report.MinTargetDelayMs = target
		}
		if target > report.MaxTargetDelayMs {
			report.MaxTargetDelayMs = target
		}
		bufferSum += float64(engine.CurrentBufferSizeMs())
		report.Frames++
	}

	if report.Frames > 0 {
		report.MeanBufferMs = bufferSum / float64(report.Frames)
	}
	report.Statistics = engine.Statistics()

	logrus.WithFields(report.Fields()).Info("Simulation finished")
	return report, nil
}

// schedule builds every packet of the scenario and sorts the surviving
// copies by arrival time.
func schedule(sc Scenario, src *source, rng *rand.Rand, report *Report) ([]delivery, error) {
	packetDur := time.Duration(sc.PacketMs) * time.Millisecond
	count := int(sc.Duration / packetDur)
	deliveries := make([]delivery, 0, count)

	ms := func(v float64) time.Duration {
		return time.Duration(v * float64(time.Millisecond))
	}

	for i := 0; i < count; i++ {
		p, err := src.next()
		if err != nil {
			return nil, fmt.Errorf("failed to build packet %d: %w", i, err)
		}
		report.PacketsSent++

		if rng.Float64() < sc.LossRate {
			report.PacketsLost++
			continue
		}

		at := time.Duration(i)*packetDur + ms(sc.BaseDelayMs+rng.Float64()*sc.JitterMs)
		if rng.Float64() < sc.ReorderRate {
			at += 2 * packetDur
			report.PacketsReordered++
		}
		deliveries = append(deliveries, delivery{at: at, packet: p})

		if rng.Float64() < sc.DuplicateRate {
			deliveries = append(deliveries, delivery{at: at + ms(rng.Float64()*float64(sc.PacketMs)), packet: p})
			report.PacketsDuplicated++
		}
	}

	sort.SliceStable(deliveries, func(a, b int) bool {
		return deliveries[a].at < deliveries[b].at
	})
	return deliveries, nil
}
