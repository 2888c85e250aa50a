package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, rate, frames, channels int, offset int) []float32 {
	out := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i+offset)/float64(rate)))
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = v
		}
	}
	return out
}

func energy(x []float32) float64 {
	var e float64
	for _, v := range x {
		e += float64(v) * float64(v)
	}
	return e
}

func assertFinite(t *testing.T, x []float32) {
	t.Helper()
	for i, v := range x {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("sample %d is not finite: %v", i, v)
		}
	}
}

func TestEstimatePitch(t *testing.T) {
	mono := sine(200, 48000, 2880, 1, 0)
	lag, corr := EstimatePitch(mono, 120, 960)
	require.NotZero(t, lag)
	assert.Equal(t, 0, lag%240, "lag should be a multiple of the 240-sample period")
	assert.Greater(t, corr, 0.99)
}

func TestEstimatePitchShortInput(t *testing.T) {
	lag, _ := EstimatePitch(make([]float32, 10), 120, 960)
	assert.Equal(t, 0, lag)
}

func TestConcealerContinuesWaveform(t *testing.T) {
	c := NewConcealer(ConcealerConfig{SampleRate: 48000, Channels: 1, FrameDurationMs: 10, MaxConcealmentMs: 200})
	c.Observe(sine(200, 48000, 2880, 1, 0))

	out, prolonged := c.Conceal(480)
	require.Len(t, out, 480)
	assert.False(t, prolonged)
	assert.True(t, c.Active())

	next := sine(200, 48000, 1, 1, 2880)[0]
	assert.InDelta(t, next, out[0], 1e-3)
	assertFinite(t, out)
}

func TestConcealerFadesToExactSilence(t *testing.T) {
	c := NewConcealer(ConcealerConfig{SampleRate: 48000, Channels: 2, FrameDurationMs: 10, MaxConcealmentMs: 200})
	c.Observe(sine(300, 48000, 2880, 2, 0))

	prev := math.Inf(1)
	for i := 0; i < 30; i++ {
		out, prolonged := c.Conceal(480)
		require.Len(t, out, 960)
		assertFinite(t, out)

		e := energy(out)
		assert.LessOrEqual(t, e, prev, "frame %d energy increased", i)
		prev = e

		if i < 20 {
			assert.False(t, prolonged, "frame %d", i)
		} else {
			assert.True(t, prolonged, "frame %d", i)
			for _, v := range out {
				require.Equal(t, float32(0), v)
			}
		}
	}
	assert.Equal(t, 30*480, c.ElapsedFrames())
}

func TestConcealerWithoutHistory(t *testing.T) {
	c := NewConcealer(ConcealerConfig{SampleRate: 16000, Channels: 1, FrameDurationMs: 20, MaxConcealmentMs: 100})
	out, _ := c.Conceal(320)
	require.Len(t, out, 320)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestConcealerConstantHistoryStaysFinite(t *testing.T) {
	c := NewConcealer(ConcealerConfig{SampleRate: 48000, Channels: 1, FrameDurationMs: 10, MaxConcealmentMs: 200})
	hist := make([]float32, 2880)
	for i := range hist {
		hist[i] = 1
	}
	c.Observe(hist)
	out, _ := c.Conceal(480)
	assertFinite(t, out)
	assert.InDelta(t, 1.0, out[0], 1e-6)
}

func TestConcealerContinueDoesNotAdvance(t *testing.T) {
	c := NewConcealer(ConcealerConfig{SampleRate: 48000, Channels: 1, FrameDurationMs: 10, MaxConcealmentMs: 200})
	c.Observe(sine(200, 48000, 2880, 1, 0))
	_, _ = c.Conceal(480)

	a := c.Continue(120)
	b := c.Continue(120)
	assert.Equal(t, a, b)
	assert.Equal(t, 480, c.ElapsedFrames())

	c.Reset()
	assert.False(t, c.Active())
	assert.Equal(t, 0, c.ElapsedFrames())
	assert.Equal(t, make([]float32, 120), c.Continue(120))
}

func TestConcealerHistoryBounded(t *testing.T) {
	c := NewConcealer(ConcealerConfig{SampleRate: 8000, Channels: 1, FrameDurationMs: 10, MaxConcealmentMs: 200})
	for i := 0; i < 100; i++ {
		c.Observe(make([]float32, 80))
	}
	assert.Len(t, c.history, 8000*historyMs/1000)
}

func TestStretcherAccelerate(t *testing.T) {
	s := NewStretcher(48000, 1, 0.2)
	src := sine(1000, 48000, 960, 1, 0)

	out, consumed, ok := s.Accelerate(src, 480)
	require.True(t, ok)
	require.Len(t, out, 480)

	lag := consumed - 480
	assert.GreaterOrEqual(t, lag, s.MinLag())
	assert.LessOrEqual(t, lag, s.MaxLag(480))
	assert.Equal(t, 0, lag%48, "splice should land on a period boundary")

	assert.InDelta(t, src[0], out[0], 0.05)
	assert.Equal(t, src[consumed-1], out[479])
	assertFinite(t, out)
}

func TestStretcherExpand(t *testing.T) {
	s := NewStretcher(48000, 1, 0.2)
	src := sine(1000, 48000, 480, 1, 0)

	out, consumed, ok := s.Expand(src, 480)
	require.True(t, ok)
	require.Len(t, out, 480)

	lag := 480 - consumed
	assert.GreaterOrEqual(t, lag, s.MinLag())
	assert.LessOrEqual(t, lag, s.MaxLag(480))

	assert.Equal(t, src[0], out[0])
	assert.Equal(t, src[lag-1], out[lag-1])
	assert.Equal(t, src[consumed-1], out[479])
	assertFinite(t, out)
}

func TestStretcherStereo(t *testing.T) {
	s := NewStretcher(48000, 2, 0.2)
	src := sine(1000, 48000, 960, 2, 0)

	out, consumed, ok := s.Accelerate(src, 480)
	require.True(t, ok)
	require.Len(t, out, 960)
	assert.Greater(t, consumed, 480)
	assert.Equal(t, src[(consumed-1)*2], out[958])
	assert.Equal(t, src[(consumed-1)*2+1], out[959])
}

func TestStretcherSilenceAndConstant(t *testing.T) {
	s := NewStretcher(16000, 1, 0.2)

	out, consumed, ok := s.Accelerate(make([]float32, 640), 320)
	require.True(t, ok)
	assert.Equal(t, 320+s.MaxLag(320), consumed)
	assertFinite(t, out)

	constant := make([]float32, 320)
	for i := range constant {
		constant[i] = 1
	}
	out, consumed, ok = s.Expand(constant, 320)
	require.True(t, ok)
	assert.Less(t, consumed, 320)
	for _, v := range out {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestStretcherInsufficientInput(t *testing.T) {
	s := NewStretcher(48000, 1, 0.2)

	_, _, ok := s.Accelerate(sine(1000, 48000, 480, 1, 0), 480)
	assert.False(t, ok)

	_, _, ok = s.Expand(sine(1000, 48000, 200, 1, 0), 480)
	assert.False(t, ok)
}

func TestCrossfade(t *testing.T) {
	a := []float32{1, 1, 1, 1}
	b := []float32{0, 0, 0, 0}
	out := Crossfade(a, b, 1)
	require.Len(t, out, 4)
	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i], out[i-1])
	}
	assert.Greater(t, out[0], float32(0.5))
	assert.Less(t, out[3], float32(0.5))
}

func TestApplyGainRamp(t *testing.T) {
	x := []float32{1, 1, 1, 1, 1, 1, 1, 1}
	ApplyGainRamp(x, 2, 1, 0)
	assert.Equal(t, float32(1), x[0])
	assert.Equal(t, float32(1), x[1])
	assert.InDelta(t, 0.25, x[6], 1e-6)
	assert.InDelta(t, 0.25, x[7], 1e-6)
}

func TestResampler(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewResampler(ResamplerConfig{InputRate: 0, OutputRate: 48000, Channels: 1})
		assert.Error(t, err)
		_, err = NewResampler(ResamplerConfig{InputRate: 8000, OutputRate: 48000, Channels: 0})
		assert.Error(t, err)
	})

	t.Run("misaligned input", func(t *testing.T) {
		r, err := NewResampler(ResamplerConfig{InputRate: 8000, OutputRate: 16000, Channels: 2})
		require.NoError(t, err)
		_, err = r.Resample([]float32{1, 2, 3})
		assert.ErrorIs(t, err, ErrResamplerInput)
	})

	t.Run("same rate passthrough", func(t *testing.T) {
		r, err := NewResampler(ResamplerConfig{InputRate: 48000, OutputRate: 48000, Channels: 1})
		require.NoError(t, err)
		in := []float32{0.1, 0.2, 0.3}
		out, err := r.Resample(in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("upsample keeps rate over chunks", func(t *testing.T) {
		r, err := NewResampler(ResamplerConfig{InputRate: 8000, OutputRate: 48000, Channels: 1})
		require.NoError(t, err)
		total := 0
		for i := 0; i < 10; i++ {
			chunk := make([]float32, 80)
			for j := range chunk {
				chunk[j] = 0.5
			}
			out, err := r.Resample(chunk)
			require.NoError(t, err)
			for _, v := range out {
				assert.InDelta(t, 0.5, v, 1e-6)
			}
			total += len(out)
		}
		assert.InDelta(t, 4800, total, 6)
	})

	t.Run("downsample", func(t *testing.T) {
		r, err := NewResampler(ResamplerConfig{InputRate: 48000, OutputRate: 16000, Channels: 2})
		require.NoError(t, err)
		out, err := r.Resample(sine(100, 48000, 960, 2, 0))
		require.NoError(t, err)
		assert.InDelta(t, 640, len(out), 2)
		assertFinite(t, out)
		r.Reset()
		assert.Equal(t, uint32(48000), r.InputRate())
		assert.Equal(t, uint32(16000), r.OutputRate())
	})

	t.Run("high quality filter", func(t *testing.T) {
		r, err := NewResampler(ResamplerConfig{InputRate: 8000, OutputRate: 48000, Channels: 1, Quality: ResampleHigh})
		require.NoError(t, err)
		assert.Equal(t, ResampleHigh, r.Quality())

		tone := sine(440, 8000, 3200, 1, 0)
		total := 0
		for i := 0; i < 20; i++ {
			out, err := r.Resample(tone[i*160 : (i+1)*160])
			require.NoError(t, err)
			assertFinite(t, out)
			total += len(out)
		}
		assert.LessOrEqual(t, total, 20*960)
		assert.Greater(t, total, 10*960, "filter delay should be far below 200ms")

		r.Reset()
		assert.Equal(t, ResampleHigh, r.Quality())
	})

	t.Run("high quality at equal rates is a passthrough", func(t *testing.T) {
		r, err := NewResampler(ResamplerConfig{InputRate: 16000, OutputRate: 16000, Channels: 1, Quality: ResampleHigh})
		require.NoError(t, err)
		assert.Equal(t, ResampleLinear, r.Quality())
		assert.Equal(t, "high", ResampleHigh.String())
	})
}
