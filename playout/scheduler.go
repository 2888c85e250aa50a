package playout

import (
	"github.com/opd-ai/neteq/buffer"
	"github.com/opd-ai/neteq/delay"
	"github.com/opd-ai/neteq/dsp"
	"github.com/opd-ai/neteq/stats"
	"github.com/sirupsen/logrus"
)

// mergeMs is the length of the crossfade from concealment into real audio.
const mergeMs = 2.5

// Config configures a Scheduler.
type Config struct {
	SampleRate            uint32
	Channels              int
	FrameDurationMs       uint32
	MaxConcealmentMs      uint32
	MaxStretchRatio       float64
	HysteresisMs          uint32
	StretchIntervalFrames int
}

// Scheduler turns stored packets into a continuous stream of frames.
// It is not safe for concurrent use.
type Scheduler struct {
	channels    int
	sampleRate  uint32
	frameFrames int
	frameMs     float64
	bandMs      float64
	interval    int
	mergeFrames int

	store      *buffer.Store
	tracker    *stats.Tracker
	controller *delay.Controller
	concealer  *dsp.Concealer
	stretcher  *dsp.Stretcher
	machine    *stateMachine

	started      bool
	next         uint32    // timestamp of pending[0]
	pending      []float32 // decoded audio from next onward
	sinceStretch int
	frames       uint64
}

// NewScheduler creates a scheduler reading from store and reporting into
// tracker and controller.
func NewScheduler(cfg Config, store *buffer.Store, tracker *stats.Tracker, controller *delay.Controller) *Scheduler {
	channels := cfg.Channels
	if channels < 1 {
		channels = 1
	}
	frameMs := cfg.FrameDurationMs
	if frameMs == 0 {
		frameMs = 10
	}
	frameFrames := int(cfg.SampleRate) * int(frameMs) / 1000
	if frameFrames < 1 {
		frameFrames = 1
	}
	band := float64(cfg.HysteresisMs)
	if band < float64(frameMs) {
		band = float64(frameMs)
	}
	mergeFrames := int(float64(cfg.SampleRate) * mergeMs / 1000)
	if limit := frameFrames / 4; mergeFrames > limit {
		mergeFrames = limit
	}

	return &Scheduler{
		channels:    channels,
		sampleRate:  cfg.SampleRate,
		frameFrames: frameFrames,
		frameMs:     float64(frameMs),
		bandMs:      band,
		interval:    cfg.StretchIntervalFrames,
		mergeFrames: mergeFrames,
		store:       store,
		tracker:     tracker,
		controller:  controller,
		concealer: dsp.NewConcealer(dsp.ConcealerConfig{
			SampleRate:       cfg.SampleRate,
			Channels:         channels,
			FrameDurationMs:  frameMs,
			MaxConcealmentMs: cfg.MaxConcealmentMs,
		}),
		stretcher: dsp.NewStretcher(cfg.SampleRate, channels, cfg.MaxStretchRatio),
		machine:   newStateMachine(),
	}
}

// FrameSamples returns the interleaved sample count of one frame.
func (s *Scheduler) FrameSamples() int {
	return s.frameFrames * s.channels
}

// State returns the operation used for the most recent frame.
func (s *Scheduler) State() State {
	return s.machine.current()
}

// Transitions returns how many state changes have occurred.
func (s *Scheduler) Transitions() uint64 {
	return s.machine.transitions
}

// Started reports whether playout has begun.
func (s *Scheduler) Started() bool {
	return s.started
}

// PendingMs returns the duration of decoded audio not yet played.
func (s *Scheduler) PendingMs() float64 {
	return float64(len(s.pending)/s.channels) * 1000 / float64(s.sampleRate)
}

// Cursor returns the timestamp of the next sample frame to be played.
func (s *Scheduler) Cursor() uint32 {
	return s.next
}

// NextFrame produces exactly one frame of interleaved audio.
//
// Until the first packet is available the frame is silence and nothing is
// recorded. Afterwards every call records one frame slot in the tracker and
// updates the target delay.
func (s *Scheduler) NextFrame() []float32 {
	if !s.started {
		front := s.store.Front()
		if front == nil {
			return make([]float32, s.FrameSamples())
		}
		s.started = true
		s.next = front.Timestamp
		logrus.WithFields(logrus.Fields{
			"function":  "Scheduler.NextFrame",
			"timestamp": front.Timestamp,
		}).Debug("Playout started")
	}

	s.fill(s.frameFrames + s.stretcher.MaxLag(s.frameFrames))

	level := float64(s.store.LenMs()) + s.PendingMs()
	s.tracker.RecordBufferLevel(level)
	filtered := s.tracker.FilteredBufferLevelMs()
	target := float64(s.controller.TargetDelayMs())

	var (
		out       []float32
		consumed  int
		kind      stats.FrameKind
		state     State
		concealed int
		prolonged bool
	)

	available := len(s.pending) / s.channels
	switch {
	case available == 0:
		out, prolonged = s.concealer.Conceal(s.frameFrames)
		consumed = s.frameFrames
		kind, state = stats.FrameConcealed, StateConcealment
		concealed = s.frameFrames

	case available < s.frameFrames:
		// Play what there is and synthesize the rest of the frame.
		head := s.merge(s.pending)
		s.concealer.Observe(head)
		tail, _ := s.concealer.Conceal(s.frameFrames - available)
		s.concealer.Observe(tail)
		out = append(head, tail...)
		consumed = s.frameFrames
		concealed = s.frameFrames - available
		kind, state = stats.FrameNormal, StateNormal

	default:
		out, consumed, kind, state = s.play(filtered, target, available)
	}

	s.advance(consumed)
	if state == StateAccelerate || state == StateExpand {
		s.sinceStretch = 0
	} else {
		s.sinceStretch++
	}
	s.frames++

	if concealed == 0 || state == StateConcealment {
		s.concealer.Observe(out)
	}

	s.machine.enter(state)
	s.tracker.RecordFrame(kind, concealed*s.channels, prolonged)
	s.controller.Update(s.tracker.JitterMs(), s.tracker.LossRate())

	return out
}

// play emits one frame from a sync buffer holding at least one frame.
func (s *Scheduler) play(filtered, target float64, available int) ([]float32, int, stats.FrameKind, State) {
	frame := s.frameFrames
	if s.concealer.Active() {
		return s.merge(s.pending[:frame*s.channels]), frame, stats.FrameNormal, StateNormal
	}

	if s.sinceStretch >= s.interval {
		switch {
		case filtered > target+s.bandMs && available >= frame+s.stretcher.MinLag():
			if out, consumed, ok := s.stretcher.Accelerate(s.pending, frame); ok {
				return out, consumed, stats.FrameAccelerated, StateAccelerate
			}
		case filtered < target-s.bandMs:
			if out, consumed, ok := s.stretcher.Expand(s.pending, frame); ok {
				return out, consumed, stats.FrameExpanded, StateExpand
			}
		}
	}

	out := make([]float32, frame*s.channels)
	copy(out, s.pending)
	return out, frame, stats.FrameNormal, StateNormal
}

// merge returns real audio, crossfaded from the concealment continuation
// when a concealment episode is ending. The episode is closed.
func (s *Scheduler) merge(real []float32) []float32 {
	out := make([]float32, len(real))
	copy(out, real)
	if !s.concealer.Active() {
		return out
	}
	n := s.mergeFrames
	if frames := len(real) / s.channels; n > frames {
		n = frames
	}
	if n > 0 {
		faded := dsp.Crossfade(s.concealer.Continue(n), real[:n*s.channels], s.channels)
		copy(out, faded)
	}
	s.concealer.Reset()
	return out
}

// fill pulls contiguous packets from the store until the sync buffer holds
// at least want sample frames or the next packet is missing.
func (s *Scheduler) fill(want int) {
	for len(s.pending)/s.channels < want {
		readTs := s.readAhead()
		p := s.store.Take(readTs)
		if p == nil {
			break
		}
		offset := int(buffer.Diff(readTs, p.Timestamp)) * s.channels
		s.pending = append(s.pending, p.Samples[offset:]...)
	}
	s.store.SetCursor(s.readAhead())
}

// advance drops consumed sample frames from the sync buffer and moves the
// cursor. Consuming past the buffered audio skips the missing span.
func (s *Scheduler) advance(frames int) {
	n := frames * s.channels
	if n >= len(s.pending) {
		s.pending = s.pending[:0]
	} else {
		s.pending = append(s.pending[:0], s.pending[n:]...)
	}
	s.next += uint32(frames)
	s.store.SetCursor(s.readAhead())
}

func (s *Scheduler) readAhead() uint32 {
	return s.next + uint32(len(s.pending)/s.channels)
}

// Reset returns the scheduler to its initial state. The store, tracker and
// controller are left to their owners.
func (s *Scheduler) Reset() {
	s.started = false
	s.next = 0
	s.pending = s.pending[:0]
	s.sinceStretch = 0
	s.frames = 0
	s.concealer.Reset()
	s.machine.reset()
}
