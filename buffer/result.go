package buffer

// InsertResult classifies the outcome of inserting a packet.
type InsertResult int

const (
	// InsertOK indicates the packet was stored.
	InsertOK InsertResult = iota
	// InsertDuplicate indicates the packet's span overlaps audio already stored.
	InsertDuplicate
	// InsertStale indicates the packet's timestamp precedes the playout cursor.
	InsertStale
	// InsertBufferFull indicates capacity was exceeded and the oldest entry was evicted.
	InsertBufferFull
	// InsertInvalidPacket indicates the payload or its format was rejected.
	InsertInvalidPacket
)

// String returns a human-readable result name.
func (r InsertResult) String() string {
	switch r {
	case InsertOK:
		return "ok"
	case InsertDuplicate:
		return "duplicate"
	case InsertStale:
		return "stale"
	case InsertBufferFull:
		return "buffer_full"
	case InsertInvalidPacket:
		return "invalid_packet"
	default:
		return "unknown"
	}
}

// Stored reports whether the result can leave the packet in the store.
// BufferFull usually evicts an older entry, but a late packet that is itself
// the oldest is the one evicted; use Store.Has to tell them apart.
func (r InsertResult) Stored() bool {
	return r == InsertOK || r == InsertBufferFull
}
