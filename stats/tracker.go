package stats

import (
	"math"
	"time"

	"github.com/opd-ai/neteq/buffer"
	"github.com/sirupsen/logrus"
)

const (
	// jitterGain is the EWMA weight given to a new deviation sample.
	jitterGain = 1.0 / 16.0

	// levelGain is the EWMA weight given to a new buffer level sample.
	levelGain = 1.0 / 8.0

	// DefaultLossWindow is the number of frame slots in the loss window.
	DefaultLossWindow = 50
)

// Counters holds monotonically increasing event counts.
type Counters struct {
	PacketsReceived uint64
	Duplicates      uint64
	Stale           uint64
	Evicted         uint64
	Invalid         uint64

	FramesNormal      uint64
	FramesConcealed   uint64
	FramesAccelerated uint64
	FramesExpanded    uint64

	ConcealedSamples      uint64
	ProlongedLossFrames   uint64
	ProlongedLossEpisodes uint64
}

// Snapshot is a read-only view of the tracker state.
type Snapshot struct {
	JitterMs              float64
	LossRate              float64 // 0.0 - 1.0 over the trailing window
	BufferLevelMs         float64
	FilteredBufferLevelMs float64
	Counters
}

// FrameKind identifies how a frame slot was filled.
type FrameKind int

const (
	// FrameNormal was played verbatim.
	FrameNormal FrameKind = iota
	// FrameConcealed was synthesized for a missing packet.
	FrameConcealed
	// FrameAccelerated was time-compressed.
	FrameAccelerated
	// FrameExpanded was time-stretched.
	FrameExpanded
)

// Tracker maintains the running statistics of one engine.
type Tracker struct {
	sampleRate float64

	// jitter
	baseArrival time.Time
	hasArrival  bool
	lastTs      uint32
	extTs       int64
	lastTransit float64
	jitterMs    float64

	// loss window, true = lost
	window     []bool
	windowPos  int
	windowFill int
	windowLost int
	inProlong  bool

	// occupancy
	levelMs         float64
	filteredLevelMs float64
	hasLevel        bool

	counters Counters
}

// NewTracker creates a tracker for a media clock of sampleRate Hz.
// A lossWindow below one selects DefaultLossWindow.
func NewTracker(sampleRate uint32, lossWindow int) *Tracker {
	if lossWindow < 1 {
		lossWindow = DefaultLossWindow
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewTracker",
		"sample_rate": sampleRate,
		"loss_window": lossWindow,
	}).Debug("Creating statistics tracker")

	return &Tracker{
		sampleRate: float64(sampleRate),
		window:     make([]bool, lossWindow),
	}
}

// OnArrival feeds one packet arrival into the jitter estimator.
//
// The expected arrival is derived from the timestamp delta at the configured
// sample rate; the deviation of actual from expected spacing is smoothed with
// gain 1/16.
func (t *Tracker) OnArrival(ts uint32, arrival time.Time) {
	if !t.hasArrival {
		t.baseArrival = arrival
		t.lastTs = ts
		t.extTs = 0
		t.lastTransit = 0
		t.hasArrival = true
		return
	}

	t.extTs += buffer.Diff(ts, t.lastTs)
	t.lastTs = ts

	arrivalMs := float64(arrival.Sub(t.baseArrival)) / float64(time.Millisecond)
	mediaMs := float64(t.extTs) * 1000.0 / t.sampleRate
	transit := arrivalMs - mediaMs

	d := math.Abs(transit - t.lastTransit)
	t.lastTransit = transit
	t.jitterMs += (d - t.jitterMs) * jitterGain
}

// RecordInsert counts the outcome of one insertion attempt.
func (t *Tracker) RecordInsert(result buffer.InsertResult) {
	switch result {
	case buffer.InsertOK:
		t.counters.PacketsReceived++
	case buffer.InsertBufferFull:
		t.counters.PacketsReceived++
		t.counters.Evicted++
	case buffer.InsertDuplicate:
		t.counters.Duplicates++
	case buffer.InsertStale:
		t.counters.Stale++
	case buffer.InsertInvalidPacket:
		t.counters.Invalid++
	}
}

// RecordSelfEviction counts a late packet that was dropped by the capacity
// eviction it triggered. It is an eviction but was never received into the
// buffer.
func (t *Tracker) RecordSelfEviction() {
	t.counters.Evicted++
}

// RecordFrame records how one output frame slot was filled.
//
// concealedSamples counts synthesized samples inside the frame, which may be
// non-zero for a normal frame whose tail ran past the available audio.
// prolonged marks a concealment frame beyond the concealment ceiling; the
// first such frame of an episode counts as a new ProlongedLoss episode.
func (t *Tracker) RecordFrame(kind FrameKind, concealedSamples int, prolonged bool) {
	lost := false
	switch kind {
	case FrameNormal:
		t.counters.FramesNormal++
	case FrameConcealed:
		t.counters.FramesConcealed++
		lost = true
	case FrameAccelerated:
		t.counters.FramesAccelerated++
	case FrameExpanded:
		t.counters.FramesExpanded++
	}
	t.counters.ConcealedSamples += uint64(concealedSamples)

	if prolonged {
		t.counters.ProlongedLossFrames++
		if !t.inProlong {
			t.counters.ProlongedLossEpisodes++
			t.inProlong = true
		}
	} else if !lost {
		t.inProlong = false
	}

	t.pushLoss(lost)
}

// RecordBufferLevel records the occupancy observed before an emission.
func (t *Tracker) RecordBufferLevel(levelMs float64) {
	t.levelMs = levelMs
	if !t.hasLevel {
		t.filteredLevelMs = levelMs
		t.hasLevel = true
		return
	}
	t.filteredLevelMs += (levelMs - t.filteredLevelMs) * levelGain
}

// JitterMs returns the current jitter estimate.
func (t *Tracker) JitterMs() float64 {
	return t.jitterMs
}

// LossRate returns the loss fraction over the filled part of the window.
func (t *Tracker) LossRate() float64 {
	if t.windowFill == 0 {
		return 0
	}
	return float64(t.windowLost) / float64(t.windowFill)
}

// FilteredBufferLevelMs returns the smoothed occupancy.
func (t *Tracker) FilteredBufferLevelMs() float64 {
	return t.filteredLevelMs
}

// Snapshot returns a copy of the current statistics.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		JitterMs:              t.jitterMs,
		LossRate:              t.LossRate(),
		BufferLevelMs:         t.levelMs,
		FilteredBufferLevelMs: t.filteredLevelMs,
		Counters:              t.counters,
	}
}

func (t *Tracker) pushLoss(lost bool) {
	if t.windowFill == len(t.window) {
		if t.window[t.windowPos] {
			t.windowLost--
		}
	} else {
		t.windowFill++
	}
	t.window[t.windowPos] = lost
	if lost {
		t.windowLost++
	}
	t.windowPos = (t.windowPos + 1) % len(t.window)
}
