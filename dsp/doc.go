// Package dsp provides the signal-level algorithms of the playout engine.
//
// # Concealment
//
// Concealer synthesizes audio for missing packets by repeating the last
// pitch period of previously emitted audio. The pitch period is found by
// normalized autocorrelation over 2.5-20 ms lags. Successive concealment
// frames are attenuated so that sustained loss fades to exact silence once
// MaxConcealmentMs of audio has been synthesized:
//
//	c := dsp.NewConcealer(dsp.ConcealerConfig{SampleRate: 48000, Channels: 1, MaxConcealmentMs: 200})
//	c.Observe(lastFrame)
//	out, prolonged := c.Conceal(480)
//
// # Time-Stretch
//
// Stretcher shortens (Accelerate) or lengthens (Expand) the playout of
// buffered audio by one similarity lag per invocation, using a single
// overlap-add splice between two similar waveform segments. The lag is bounded
// by MaxStretchRatio of a frame, so every invocation changes the time scale
// by at most that fraction and output stays continuous at both frame edges.
//
// # Support
//
// Crossfade and ApplyGainRamp are the shared mixing primitives; Resampler
// converts sample rates by linear interpolation for front-ends whose decoders
// run at a different clock than the engine.
//
// All types in this package are single-goroutine; the engine serializes use.
package dsp
