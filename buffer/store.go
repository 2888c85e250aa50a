package buffer

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// Store is a capacity-bounded, timestamp-ordered packet collection.
//
// Invariants: no two entries overlap in media time, at most Capacity entries
// are held, and no entry ends at or before the playout cursor.
type Store struct {
	capacity   int
	packets    []*Packet // ascending, wrap-aware
	durationMs uint64

	cursor    uint32
	hasCursor bool

	evicted uint64
	purged  uint64
}

// NewStore creates an empty store holding at most capacity packets.
// A capacity below one is raised to one.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		packets:  make([]*Packet, 0, capacity+1),
	}
}

// Capacity returns the maximum number of stored packets.
func (s *Store) Capacity() int {
	return s.capacity
}

// Insert stores p in timestamp order.
//
// Returns InsertStale when p starts before the playout cursor, InsertDuplicate
// when its span overlaps a stored packet's span, InsertBufferFull when the
// insertion pushed the store over capacity and the oldest entry was evicted.
// When p is itself the oldest entry in that case, p is the one evicted; Has
// tells the two cases apart.
func (s *Store) Insert(p *Packet) InsertResult {
	if s.hasCursor && Before(p.Timestamp, s.cursor) {
		return InsertStale
	}

	idx := s.search(p.Timestamp)
	if s.overlaps(idx, p) {
		return InsertDuplicate
	}

	s.packets = append(s.packets, nil)
	copy(s.packets[idx+1:], s.packets[idx:])
	s.packets[idx] = p
	s.durationMs += uint64(p.DurationMs)

	if len(s.packets) <= s.capacity {
		return InsertOK
	}

	oldest := s.removeAt(0)
	s.evicted++
	logrus.WithFields(logrus.Fields{
		"function":        "Store.Insert",
		"evicted_ts":      oldest.Timestamp,
		"evicted_seq":     oldest.SequenceNumber,
		"inserted_ts":     p.Timestamp,
		"capacity":        s.capacity,
		"evicted_is_self": oldest == p,
	}).Debug("Packet store over capacity, evicted oldest entry")
	return InsertBufferFull
}

// overlaps reports whether p, to be placed at idx, shares media time with
// either neighbour.
func (s *Store) overlaps(idx int, p *Packet) bool {
	if idx < len(s.packets) {
		next := s.packets[idx]
		if next.Timestamp == p.Timestamp || Before(next.Timestamp, p.End()) {
			return true
		}
	}
	if idx > 0 && Before(p.Timestamp, s.packets[idx-1].End()) {
		return true
	}
	return false
}

// Has reports whether a packet starting exactly at ts is stored.
func (s *Store) Has(ts uint32) bool {
	idx := s.search(ts)
	return idx < len(s.packets) && s.packets[idx].Timestamp == ts
}

// PeekNext returns the stored packet whose span covers ts without removing it.
func (s *Store) PeekNext(ts uint32) *Packet {
	idx := s.search(ts)
	if idx < len(s.packets) && s.packets[idx].Timestamp == ts {
		return s.packets[idx]
	}
	// The covering packet, if any, starts before ts.
	if idx > 0 && s.packets[idx-1].Covers(ts) {
		return s.packets[idx-1]
	}
	return nil
}

// Take removes and returns the stored packet whose span covers ts.
func (s *Store) Take(ts uint32) *Packet {
	idx := s.search(ts)
	if idx < len(s.packets) && s.packets[idx].Timestamp == ts {
		return s.removeAt(idx)
	}
	if idx > 0 && s.packets[idx-1].Covers(ts) {
		return s.removeAt(idx - 1)
	}
	return nil
}

// PopNext removes and returns the earliest stored packet.
func (s *Store) PopNext() *Packet {
	if len(s.packets) == 0 {
		return nil
	}
	return s.removeAt(0)
}

// Front returns the earliest stored packet without removing it.
func (s *Store) Front() *Packet {
	if len(s.packets) == 0 {
		return nil
	}
	return s.packets[0]
}

// SetCursor moves the playout cursor to ts and purges every entry that ends
// at or before it. Returns the number of purged entries.
func (s *Store) SetCursor(ts uint32) int {
	s.cursor = ts
	s.hasCursor = true

	n := 0
	for len(s.packets) > 0 && !Before(ts, s.packets[0].End()) {
		s.removeAt(0)
		n++
	}
	s.purged += uint64(n)
	return n
}

// Cursor returns the playout cursor and whether one has been set.
func (s *Store) Cursor() (uint32, bool) {
	return s.cursor, s.hasCursor
}

// LenMs returns the summed duration of the stored packets.
func (s *Store) LenMs() uint32 {
	return uint32(s.durationMs)
}

// Len returns the number of stored packets.
func (s *Store) Len() int {
	return len(s.packets)
}

// Timestamps returns the stored timestamps in playout order.
func (s *Store) Timestamps() []uint32 {
	out := make([]uint32, len(s.packets))
	for i, p := range s.packets {
		out[i] = p.Timestamp
	}
	return out
}

// Evicted returns the number of capacity evictions since creation.
func (s *Store) Evicted() uint64 {
	return s.evicted
}

// Purged returns the number of entries dropped because the cursor passed them.
func (s *Store) Purged() uint64 {
	return s.purged
}

// Reset drops every entry and clears the cursor.
func (s *Store) Reset() {
	for i := range s.packets {
		s.packets[i] = nil
	}
	s.packets = s.packets[:0]
	s.durationMs = 0
	s.hasCursor = false
	s.cursor = 0
}

// search returns the first index whose timestamp is not before ts.
func (s *Store) search(ts uint32) int {
	return sort.Search(len(s.packets), func(i int) bool {
		return !Before(s.packets[i].Timestamp, ts)
	})
}

func (s *Store) removeAt(idx int) *Packet {
	p := s.packets[idx]
	copy(s.packets[idx:], s.packets[idx+1:])
	s.packets[len(s.packets)-1] = nil
	s.packets = s.packets[:len(s.packets)-1]
	s.durationMs -= uint64(p.DurationMs)
	return p
}
