// Package playout implements the per-frame playout decision of the engine.
//
// The Scheduler owns a sync buffer of decoded audio starting at the playout
// cursor. On every NextFrame call it pulls contiguous packets out of the
// packet store, compares the smoothed buffer level against the delay
// controller's target and emits exactly one frame through one of four
// operations:
//
//	Normal       buffered audio played verbatim
//	Concealment  the packet at the cursor is missing, audio is synthesized
//	Accelerate   level above target, one frame is built from more input
//	Expand       level below target, one frame is built from less input
//
// The current operation is tracked by a looplab/fsm state machine. Every
// emission updates the statistics tracker and recomputes the target delay.
package playout
