package protocol

// Snapshot is the server's authoritative view of visible entities at a
// tick boundary, packaged for transmission to one peer. States is kept in
// ascending entity-id order: that ordering is an invariant of the wire
// encoding, not just a convenience, because the varint id-delta coder
// depends on it to stay compact and to terminate correctly on decode.
type Snapshot struct {
	Sequence               uint16
	TimestampMs             uint32
	BaselineSequence        uint16 // 0 iff this is a full (keyframe) snapshot
	PlayerEntityID          uint32 // 0 if this peer has no player entity
	LastProcessedInputTick  uint32
	States                  []SnapshotEntry
}

// SnapshotEntry pairs an entity id with its wire-visible state, in the
// order they appear (and must appear) on the wire.
type SnapshotEntry struct {
	ID    uint32
	State EntityState
}

// Lookup returns the state for id and whether it was present.
func (s *Snapshot) Lookup(id uint32) (EntityState, bool) {
	// States is small (<= MaxEntitiesPerSnapshot) and already sorted by
	// id, but a linear scan is simpler than a binary search here. Encode
	// and Decode call it once per entity against the baseline; the client
	// and tests call it directly.
	for _, e := range s.States {
		if e.ID == id {
			return e.State, true
		}
	}
	return EntityState{}, false
}

// PlayerState returns the state of the snapshot's own player entity, if
// present in States (it always should be when PlayerEntityID != 0, since
// InterestManager guarantees the owning player is included).
func (s *Snapshot) PlayerState() (EntityState, bool) {
	if s.PlayerEntityID == 0 {
		return EntityState{}, false
	}
	return s.Lookup(s.PlayerEntityID)
}

// SequenceAfter implements the circular sequence comparator required for
// correct ordering across the u16 wraparound at 65535: a is "more recent
// than" b iff (a - b) mod 65536 < 32768.
func SequenceAfter(a, b uint16) bool {
	return uint16(a-b) < 32768
}

// SnapshotHistory is the server's per-peer bounded ring of sent
// snapshots, keyed by sequence. Used both as the baseline source for
// delta encoding and as the world-state source a lag-compensation
// rewind would index into for the entities a specific peer was shown —
// the raycast world-history ring is deliberately separate (LagComp
// operates on the true authoritative world, not per-peer interest sets).
type SnapshotHistory struct {
	size    int
	entries map[uint16]*Snapshot
	order   []uint16 // insertion order, oldest first, for eviction
}

// NewSnapshotHistory creates a ring retaining at most size entries.
func NewSnapshotHistory(size int) *SnapshotHistory {
	return &SnapshotHistory{
		size:    size,
		entries: make(map[uint16]*Snapshot, size),
		order:   make([]uint16, 0, size),
	}
}

// Store records snapshot, evicting the oldest entry if size is exceeded.
func (h *SnapshotHistory) Store(snap *Snapshot) {
	h.entries[snap.Sequence] = snap
	h.order = append(h.order, snap.Sequence)
	for len(h.order) > h.size {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.entries, oldest)
	}
}

// Get looks up a snapshot by sequence. ok is false if it was never stored
// or has since been evicted (ErrBaselineEvicted territory for callers
// that expected it to still be present).
func (h *SnapshotHistory) Get(sequence uint16) (*Snapshot, bool) {
	s, ok := h.entries[sequence]
	return s, ok
}

// Len reports the number of entries currently retained.
func (h *SnapshotHistory) Len() int {
	return len(h.order)
}
