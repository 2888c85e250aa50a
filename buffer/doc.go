// Package buffer implements the packet store of the playout engine.
//
// The Store keeps decoded audio packets ordered by RTP timestamp, rejects
// duplicates and packets that the playout cursor has already passed, and
// bounds memory by evicting the oldest entry once the configured capacity is
// exceeded.
//
// Timestamps wrap at 2^32; every comparison in this package is wrap-aware:
//
//	buffer.Before(0xFFFFFF00, 0x00000010) // true
//
// The Store performs no locking. The engine serializes access to it inside
// its own critical section.
package buffer
