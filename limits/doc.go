// Package limits provides centralized size constants and validation functions
// for audio payloads handed to the playout engine. This package ensures
// consistent enforcement across the engine, the RTP front-end and the
// configuration loader.
//
// # Limit Hierarchy
//
//   - MaxChannels (8): the widest interleaving factor accepted for any buffer.
//
//   - MaxSampleRate (192000 Hz): the highest media clock accepted by Config.
//
//   - MaxPacketDurationMs (120 ms): the longest single packet; matches the
//     longest Opus packet and bounds the work done inside one critical section.
//
//   - MaxPacketSamples: interleaved sample ceiling derived from the three
//     limits above. Payloads above it are rejected before they reach the store.
//
//   - MaxPacketsInBuffer (1000): hard upper bound on the store capacity a
//     Config may request.
//
// # Validation Functions
//
//	err := limits.ValidatePayload(samples, channels)
//	if err != nil {
//	    // ErrPayloadEmpty, ErrPayloadTooLarge, ErrPayloadMisaligned or ErrPayloadNotFinite
//	}
//
// All errors wrap one of the sentinel values so callers classify them with
// errors.Is.
package limits
