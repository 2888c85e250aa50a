package playout

import (
	"math"
	"testing"

	"github.com/opd-ai/neteq/buffer"
	"github.com/opd-ai/neteq/delay"
	"github.com/opd-ai/neteq/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 48000

type harness struct {
	sched   *Scheduler
	store   *buffer.Store
	tracker *stats.Tracker
	ctrl    *delay.Controller
}

func newHarness(t *testing.T, minDelay, maxDelay uint32) *harness {
	t.Helper()
	store := buffer.NewStore(50)
	tracker := stats.NewTracker(testRate, 50)
	ctrl, err := delay.NewController(delay.Config{MinDelayMs: minDelay, MaxDelayMs: maxDelay})
	require.NoError(t, err)

	sched := NewScheduler(Config{
		SampleRate:            testRate,
		Channels:              1,
		FrameDurationMs:       10,
		MaxConcealmentMs:      200,
		MaxStretchRatio:       0.2,
		HysteresisMs:          10,
		StretchIntervalFrames: 5,
	}, store, tracker, ctrl)
	return &harness{sched: sched, store: store, tracker: tracker, ctrl: ctrl}
}

func constant(value float32, frames int) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = value
	}
	return out
}

func tone(start, frames int) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*1000*float64(start+i)/testRate))
	}
	return out
}

func (h *harness) insert(t *testing.T, seq uint16, ts uint32, samples []float32) {
	t.Helper()
	res := h.store.Insert(&buffer.Packet{
		SequenceNumber: seq,
		Timestamp:      ts,
		Samples:        samples,
		SampleRate:     testRate,
		Channels:       1,
		DurationMs:     uint32(len(samples) * 1000 / testRate),
	})
	require.True(t, res.Stored(), "insert %d: %s", ts, res)
}

func TestSchedulerSilenceBeforeFirstPacket(t *testing.T) {
	h := newHarness(t, 20, 200)
	out := h.sched.NextFrame()
	require.Len(t, out, 480)
	assert.Equal(t, make([]float32, 480), out)
	assert.False(t, h.sched.Started())

	snap := h.tracker.Snapshot()
	assert.Zero(t, snap.FramesConcealed)
	assert.Zero(t, snap.LossRate)
	assert.Zero(t, h.ctrl.Updates())
}

func TestSchedulerNormalPlayout(t *testing.T) {
	h := newHarness(t, 20, 200)
	for i := 0; i < 5; i++ {
		h.insert(t, uint16(i), uint32(i*480), constant(1.0, 480))
	}

	for i := 0; i < 5; i++ {
		out := h.sched.NextFrame()
		require.Len(t, out, 480)
		for _, v := range out {
			require.Equal(t, float32(1.0), v, "frame %d", i)
		}
		assert.Equal(t, StateNormal, h.sched.State())
	}
	assert.Equal(t, uint32(2400), h.sched.Cursor())
	assert.Equal(t, uint64(5), h.tracker.Snapshot().FramesNormal)
	assert.Equal(t, uint64(5), h.ctrl.Updates())
}

func TestSchedulerConcealAndMerge(t *testing.T) {
	h := newHarness(t, 20, 200)
	h.insert(t, 0, 0, constant(1.0, 480))
	h.insert(t, 2, 960, constant(1.0, 480))

	first := h.sched.NextFrame()
	assert.Equal(t, constant(1.0, 480), first)

	second := h.sched.NextFrame()
	require.Len(t, second, 480)
	assert.Equal(t, StateConcealment, h.sched.State())
	for i, v := range second {
		require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0), "sample %d", i)
		require.NotZero(t, v, "sample %d", i)
	}

	third := h.sched.NextFrame()
	require.Len(t, third, 480)
	assert.Equal(t, StateNormal, h.sched.State())
	for i := h.sched.mergeFrames; i < 480; i++ {
		require.Equal(t, float32(1.0), third[i], "sample %d", i)
	}
	for i := 0; i < h.sched.mergeFrames; i++ {
		assert.LessOrEqual(t, third[i], float32(1.0))
		assert.Greater(t, third[i], float32(0))
	}

	snap := h.tracker.Snapshot()
	assert.Equal(t, uint64(1), snap.FramesConcealed)
	assert.Equal(t, uint64(2), snap.FramesNormal)
	assert.Equal(t, uint64(480), snap.ConcealedSamples)
	assert.Equal(t, uint64(2), h.sched.Transitions())
}

func TestSchedulerAcceleratesWhenAboveTarget(t *testing.T) {
	h := newHarness(t, 20, 200)
	for i := 0; i < 30; i++ {
		h.insert(t, uint16(i), uint32(i*480), tone(i*480, 480))
	}

	for i := 0; i < 10; i++ {
		out := h.sched.NextFrame()
		require.Len(t, out, 480)
	}

	snap := h.tracker.Snapshot()
	assert.GreaterOrEqual(t, snap.FramesAccelerated, uint64(1))
	assert.Zero(t, snap.FramesConcealed)
	assert.Greater(t, h.sched.Cursor(), uint32(10*480), "accelerate consumes more than it plays")
}

func TestSchedulerExpandsWhenBelowTarget(t *testing.T) {
	h := newHarness(t, 150, 200)
	for i := 0; i < 10; i++ {
		h.insert(t, uint16(i), uint32(i*480), tone(i*480, 480))
	}

	for i := 0; i < 5; i++ {
		h.sched.NextFrame()
	}
	assert.Equal(t, uint32(5*480), h.sched.Cursor())

	out := h.sched.NextFrame()
	require.Len(t, out, 480)
	assert.Equal(t, StateExpand, h.sched.State())
	assert.Less(t, h.sched.Cursor(), uint32(6*480), "expand consumes less than it plays")
	assert.Equal(t, uint64(1), h.tracker.Snapshot().FramesExpanded)
}

func TestSchedulerPartialFrame(t *testing.T) {
	h := newHarness(t, 20, 200)
	h.insert(t, 0, 0, constant(0.5, 240))

	out := h.sched.NextFrame()
	require.Len(t, out, 480)
	for i := 0; i < 240; i++ {
		assert.Equal(t, float32(0.5), out[i])
	}

	snap := h.tracker.Snapshot()
	assert.Equal(t, uint64(1), snap.FramesNormal)
	assert.Equal(t, uint64(240), snap.ConcealedSamples)
	assert.Equal(t, uint32(480), h.sched.Cursor())
}

func TestSchedulerCursorRejectsStale(t *testing.T) {
	h := newHarness(t, 20, 200)
	h.insert(t, 0, 0, constant(1.0, 480))
	h.insert(t, 1, 480, constant(1.0, 480))
	h.sched.NextFrame()

	res := h.store.Insert(&buffer.Packet{Timestamp: 0, Samples: constant(1, 480), Channels: 1, DurationMs: 10})
	assert.Equal(t, buffer.InsertStale, res)
}

func TestSchedulerSustainedLossFadesToZero(t *testing.T) {
	h := newHarness(t, 20, 200)
	h.insert(t, 0, 0, tone(0, 480))
	h.sched.NextFrame()

	for i := 1; i <= 40; i++ {
		out := h.sched.NextFrame()
		require.Len(t, out, 480)
		for _, v := range out {
			require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
		}
		if i > 20 {
			assert.Equal(t, make([]float32, 480), out, "frame %d", i)
		}
	}

	snap := h.tracker.Snapshot()
	assert.Equal(t, uint64(40), snap.FramesConcealed)
	assert.Equal(t, uint64(1), snap.ProlongedLossEpisodes)
	assert.Equal(t, uint64(20), snap.ProlongedLossFrames)
	assert.Greater(t, snap.LossRate, 0.7)
}

func TestSchedulerReset(t *testing.T) {
	h := newHarness(t, 20, 200)
	h.insert(t, 0, 0, constant(1.0, 480))
	h.sched.NextFrame()
	h.sched.NextFrame()
	require.Equal(t, StateConcealment, h.sched.State())

	h.sched.Reset()
	assert.False(t, h.sched.Started())
	assert.Equal(t, StateNormal, h.sched.State())
	assert.Zero(t, h.sched.Transitions())
	assert.Zero(t, h.sched.PendingMs())
}

func TestStateMachineRepeatedStateIsNotATransition(t *testing.T) {
	m := newStateMachine()
	m.enter(StateNormal)
	assert.Equal(t, StateNormal, m.current())
	assert.Zero(t, m.transitions)

	m.enter(StateAccelerate)
	m.enter(StateAccelerate)
	m.enter(StateConcealment)
	assert.Equal(t, StateConcealment, m.current())
	assert.Equal(t, uint64(2), m.transitions)
	assert.Equal(t, "concealment", m.current().String())
}
