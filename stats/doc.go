// Package stats tracks arrival jitter, loss rate and buffer occupancy for the
// playout engine.
//
// Jitter follows the RFC 3550 interarrival estimator: for every arriving
// packet the transit time (arrival time minus media time) is compared with the
// previous packet's transit, and the absolute difference is folded into an
// exponentially weighted average with gain 1/16.
//
// Loss is a windowed rate over the last N frame slots the playout path has
// filled, counting a slot as lost when it had to be concealed.
//
// Writers are the insertion path (OnArrival, RecordInsert) and the
// consumption path (RecordFrame, RecordBufferLevel). Readers take a Snapshot.
// The Tracker performs no locking; the engine serializes access.
package stats
