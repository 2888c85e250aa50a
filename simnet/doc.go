// Package simnet drives a playout engine through a simulated network.
//
// A Scenario describes a talker sending fixed-duration packets of a
// synthetic tone over a link with jitter, loss, reordering and
// duplication. Run replays the scenario on a virtual clock so that
// arrival timing, and therefore every delay decision the engine makes,
// is reproducible from the scenario's seed:
//
//	engine, _ := neteq.New(neteq.DefaultConfig())
//	report, err := simnet.Run(engine, simnet.Scenario{
//		Duration: 10 * time.Second,
//		PacketMs: 20,
//		JitterMs: 30,
//		LossRate: 0.05,
//		Seed:     1,
//	})
//
// Packets can be handed to the engine directly as PCM or, by naming a
// codec, encoded to RTP and fed through an rtpio.Depacketizer.
//
// This package is test and tooling scaffolding. It is not a network
// emulator and makes no attempt to model congestion.
package simnet
