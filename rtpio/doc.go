// Package rtpio connects raw RTP audio to a playout engine.
//
// A Depacketizer parses RTP packets with pion/rtp, decodes the payload with
// the codec registered for its payload type, converts the audio to the
// engine's sample rate and channel layout, maps the RTP timestamp onto the
// engine's media clock and inserts the result.
//
// # Codecs
//
//   - PCMU and PCMA (RFC 3551, payload types 0 and 8) via zaf/g711
//   - L16 (RFC 3551 big-endian linear PCM) at any clock rate
//   - Opus (RFC 7587) via pion/opus
//
// # Example
//
//	engine, _ := neteq.New(cfg)
//	d, err := rtpio.NewDepacketizer(engine, rtpio.Config{SampleRate: 48000, Channels: 1})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d.Register(111, rtpio.NewOpus())
//	result, err := d.HandleRTP(datagram)
//
// A Packetizer produces the matching RTP stream from float32 PCM and is used
// by the simulator to drive the full receive path.
package rtpio
