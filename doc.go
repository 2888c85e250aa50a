// Package neteq implements an adaptive jitter buffer and playout engine for
// real-time audio.
//
// Decoded audio packets arrive at an irregular cadence through Insert. A
// real-time consumer pulls exactly one frame of audio per GetAudio call. In
// between, the engine stores packets in timestamp order, estimates network
// jitter and loss, derives a target buffer delay, and chooses per frame
// whether to play buffered audio verbatim, synthesize audio for a missing
// packet, or time-stretch buffered audio to move the buffer level toward
// the target.
//
// # Getting Started
//
//	cfg := neteq.DefaultConfig()
//	cfg.SampleRate = 48000
//	cfg.Channels = 1
//
//	engine, err := neteq.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	// network goroutine
//	result := engine.Insert(header, samples, 48000, 1, 10)
//
//	// audio device callback, every 10ms
//	out := make([]float32, engine.FrameSamples())
//	n := engine.GetAudio(out)
//
// # Runtime Conditions
//
// Only construction fails with an error (wrapping ErrInvalidConfig). At
// runtime, duplicates, late packets, overflow and malformed packets are
// reported through buffer.InsertResult and the Statistics counters. Missing
// audio is concealed, and sustained loss fades to silence after
// MaxConcealmentMs.
//
// # Concurrency
//
// Every Engine method is safe for concurrent use. Each engine holds its own
// lock; there is no shared state between engines. Close must not race with
// in-flight calls on the same engine.
//
// # Deterministic Testing
//
// Arrival times are read from a TimeProvider. Tests and simulations inject
// a virtual clock with SetTimeProvider.
package neteq
