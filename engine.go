package neteq

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/neteq/buffer"
	"github.com/opd-ai/neteq/delay"
	"github.com/opd-ai/neteq/limits"
	"github.com/opd-ai/neteq/playout"
	"github.com/opd-ai/neteq/stats"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// durationToleranceMs is how far a declared packet duration may differ from
// the duration implied by its payload.
const durationToleranceMs = 1.0

// Statistics is a point-in-time view of one engine.
type Statistics struct {
	stats.Snapshot

	TargetDelayMs       uint32
	CurrentBufferSizeMs uint32
	PacketsInBuffer     int
	State               playout.State
	StateTransitions    uint64
	TalkSpurts          uint64
}

// Engine is one adaptive jitter buffer. All methods are safe for concurrent
// use; Insert and GetAudio are expected from different goroutines.
type Engine struct {
	mu sync.Mutex

	id     uuid.UUID
	config Config

	store      *buffer.Store
	tracker    *stats.Tracker
	controller *delay.Controller
	scheduler  *playout.Scheduler

	timeProvider TimeProvider

	ssrc       uint32
	hasSSRC    bool
	talkSpurts uint64
	closed     bool
}

// New validates config and creates an engine. Zero tuning fields take
// their defaults; an invalid configuration returns an error wrapping
// ErrInvalidConfig and no engine.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Engine configuration rejected")
		return nil, err
	}
	config = config.withDefaults()

	controller, err := delay.NewController(delay.Config{
		MinDelayMs:        config.MinDelayMs,
		MaxDelayMs:        config.MaxDelayMs,
		AdditionalDelayMs: config.AdditionalDelayMs,
		JitterMultiplier:  config.JitterMultiplier,
		LossMarginMs:      config.LossMarginMs,
		IncreaseStepMs:    config.TargetIncreaseStepMs,
		DecreaseStepMs:    config.TargetDecreaseStepMs,
	})
	if err != nil {
		return nil, invalid(ErrInvalidDelayWindow, "%v", err)
	}

	store := buffer.NewStore(config.MaxPacketsInBuffer)
	tracker := stats.NewTracker(config.SampleRate, config.LossWindowPackets)

	e := &Engine{
		id:           uuid.New(),
		config:       config,
		store:        store,
		tracker:      tracker,
		controller:   controller,
		timeProvider: RealTimeProvider{},
		scheduler: playout.NewScheduler(playout.Config{
			SampleRate:            config.SampleRate,
			Channels:              config.Channels,
			FrameDurationMs:       config.FrameDurationMs,
			MaxConcealmentMs:      config.MaxConcealmentMs,
			MaxStretchRatio:       config.MaxStretchRatio,
			HysteresisMs:          config.HysteresisMs,
			StretchIntervalFrames: config.StretchIntervalFrames,
		}, store, tracker, controller),
	}

	logrus.WithFields(logrus.Fields{
		"function":      "New",
		"engine_id":     e.id.String(),
		"sample_rate":   config.SampleRate,
		"channels":      config.Channels,
		"max_packets":   config.MaxPacketsInBuffer,
		"min_delay_ms":  config.MinDelayMs,
		"max_delay_ms":  config.MaxDelayMs,
		"additional_ms": config.AdditionalDelayMs,
		"frame_ms":      config.FrameDurationMs,
	}).Info("Playout engine created")

	return e, nil
}

// ID returns the engine's instance identifier.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Config returns the effective configuration, defaults included.
func (e *Engine) Config() Config {
	return e.config
}

// FrameSamples returns the interleaved sample count GetAudio produces per
// call when given enough capacity.
func (e *Engine) FrameSamples() int {
	return e.config.frameFrames() * e.config.Channels
}

// SetTimeProvider sets the clock used to stamp packet arrivals.
// Passing nil restores the system clock.
func (e *Engine) SetTimeProvider(tp TimeProvider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeProvider = getTimeProvider(tp)
}

func (e *Engine) now() time.Time {
	return e.timeProvider.Now()
}

// Insert hands one decoded packet to the engine.
//
// samples holds channels-interleaved PCM. durationMs may be zero, in which
// case it is derived from the payload. The packet is rejected as
// InsertInvalidPacket when its format differs from the engine's, when the
// payload is empty, misaligned or non-finite, when the declared duration
// disagrees with the payload, or when its SSRC differs from the first
// accepted packet's.
func (e *Engine) Insert(header rtp.Header, samples []float32, sampleRate uint32, channels int, durationMs uint32) buffer.InsertResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return buffer.InsertInvalidPacket
	}

	duration, reason := e.validate(header, samples, sampleRate, channels, durationMs)
	if reason != "" {
		e.tracker.RecordInsert(buffer.InsertInvalidPacket)
		logrus.WithFields(logrus.Fields{
			"function":  "Engine.Insert",
			"engine_id": e.id.String(),
			"sequence":  header.SequenceNumber,
			"timestamp": header.Timestamp,
			"reason":    reason,
		}).Debug("Packet rejected")
		return buffer.InsertInvalidPacket
	}

	payload := make([]float32, len(samples))
	copy(payload, samples)
	arrival := e.now()

	result := e.store.Insert(&buffer.Packet{
		SequenceNumber: header.SequenceNumber,
		Timestamp:      header.Timestamp,
		Samples:        payload,
		SampleRate:     sampleRate,
		Channels:       channels,
		DurationMs:     duration,
		Marker:         header.Marker,
		Arrival:        arrival,
	})
	stored := result == buffer.InsertOK ||
		(result == buffer.InsertBufferFull && e.store.Has(header.Timestamp))
	if result == buffer.InsertBufferFull && !stored {
		e.tracker.RecordSelfEviction()
	} else {
		e.tracker.RecordInsert(result)
	}

	switch result {
	case buffer.InsertOK, buffer.InsertBufferFull, buffer.InsertStale:
		e.tracker.OnArrival(header.Timestamp, arrival)
		e.controller.Update(e.tracker.JitterMs(), e.tracker.LossRate())
	}
	if stored {
		if !e.hasSSRC {
			e.ssrc = header.SSRC
			e.hasSSRC = true
		}
		if header.Marker {
			e.talkSpurts++
		}
	}

	if result != buffer.InsertOK {
		logrus.WithFields(logrus.Fields{
			"function":  "Engine.Insert",
			"engine_id": e.id.String(),
			"sequence":  header.SequenceNumber,
			"timestamp": header.Timestamp,
			"result":    result.String(),
		}).Debug("Packet not stored as-is")
	}
	return result
}

// validate returns the effective packet duration, or a rejection reason.
func (e *Engine) validate(header rtp.Header, samples []float32, sampleRate uint32, channels int, durationMs uint32) (uint32, string) {
	if sampleRate != e.config.SampleRate {
		return 0, "sample rate mismatch"
	}
	if channels != e.config.Channels {
		return 0, "channel count mismatch"
	}
	if e.hasSSRC && header.SSRC != e.ssrc {
		return 0, "ssrc mismatch"
	}
	if err := limits.ValidatePayload(samples, channels); err != nil {
		return 0, err.Error()
	}

	exactMs := float64(len(samples)/channels) * 1000 / float64(sampleRate)
	if exactMs > limits.MaxPacketDurationMs {
		return 0, "packet duration exceeds limit"
	}
	if durationMs == 0 {
		derived := uint32(math.Round(exactMs))
		if derived == 0 {
			derived = 1
		}
		return derived, ""
	}
	if math.Abs(float64(durationMs)-exactMs) > durationToleranceMs {
		return 0, "declared duration disagrees with payload"
	}
	return durationMs, ""
}

// InsertPacket inserts a parsed RTP packet whose payload already holds
// decoded PCM.
func (e *Engine) InsertPacket(pkt *rtp.Packet, samples []float32, durationMs uint32) buffer.InsertResult {
	if pkt == nil {
		return buffer.InsertInvalidPacket
	}
	return e.Insert(pkt.Header, samples, e.config.SampleRate, e.config.Channels, durationMs)
}

// GetAudio fills out with the next frame of audio and returns the number of
// samples written. At most one frame is produced per call; when out is
// shorter than a frame the remainder of that frame is discarded. A zero
// length out produces nothing and does not advance playout.
func (e *Engine) GetAudio(out []float32) int {
	if len(out) == 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0
	}
	return copy(out, e.scheduler.NextFrame())
}

// GetAudioFrame returns the next full frame of audio.
func (e *Engine) GetAudioFrame() []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	return e.scheduler.NextFrame()
}

// CurrentBufferSizeMs returns the buffered audio not yet played: stored
// packets plus decoded audio waiting in the sync buffer.
func (e *Engine) CurrentBufferSizeMs() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bufferSizeMs()
}

func (e *Engine) bufferSizeMs() uint32 {
	return e.store.LenMs() + uint32(math.Round(e.scheduler.PendingMs()))
}

// TargetDelayMs returns the current target buffer delay.
func (e *Engine) TargetDelayMs() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controller.TargetDelayMs()
}

// State returns the playout operation used for the most recent frame.
func (e *Engine) State() playout.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler.State()
}

// Statistics returns a snapshot of the engine's counters and estimates.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Statistics{
		Snapshot:            e.tracker.Snapshot(),
		TargetDelayMs:       e.controller.TargetDelayMs(),
		CurrentBufferSizeMs: e.bufferSizeMs(),
		PacketsInBuffer:     e.store.Len(),
		State:               e.scheduler.State(),
		StateTransitions:    e.scheduler.Transitions(),
		TalkSpurts:          e.talkSpurts,
	}
}

// Close releases the engine's buffers. Subsequent Insert calls return
// InsertInvalidPacket and GetAudio produces nothing.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	e.closed = true
	e.store.Reset()
	e.scheduler.Reset()

	logrus.WithFields(logrus.Fields{
		"function":  "Engine.Close",
		"engine_id": e.id.String(),
	}).Info("Playout engine closed")
	return nil
}
