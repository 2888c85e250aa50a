package buffer

import "time"

// Packet is one unit of decoded audio as handed to the engine.
// A Packet is immutable once stored.
type Packet struct {
	SequenceNumber uint16
	Timestamp      uint32    // media clock units, first sample of the payload
	Samples        []float32 // interleaved PCM, Channels values per sample frame
	SampleRate     uint32
	Channels       int
	DurationMs     uint32
	Marker         bool
	Arrival        time.Time
}

// Frames returns the number of sample frames (samples per channel).
func (p *Packet) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// End returns the timestamp just past the last sample frame.
func (p *Packet) End() uint32 {
	return p.Timestamp + uint32(p.Frames())
}

// Covers reports whether ts falls inside the packet's span.
func (p *Packet) Covers(ts uint32) bool {
	return !Before(ts, p.Timestamp) && Before(ts, p.End())
}

// Before reports whether timestamp a precedes b, accounting for wraparound.
func Before(a, b uint32) bool {
	return int32(a-b) < 0
}

// Diff returns the signed distance a - b in timestamp units.
func Diff(a, b uint32) int64 {
	return int64(int32(a - b))
}
