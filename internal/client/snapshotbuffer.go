// Package client holds the receiving end of the protocol: the bounded
// snapshot ring, clock synchronization, render-time interpolation, and
// local-player prediction/reconciliation spec.md §4.6-§4.9 describe.
// Grounded on the teacher's game_snapshot.go triple-buffer discipline
// ("pre-allocate, never grow past a cap, drop rather than block"),
// generalized from a 3-slot render buffer to a sequence-ordered ring
// wide enough to span the interpolation delay.
package client

import (
	"duelnet/internal/protocol"
)

// SnapshotBuffer is the client's ordered ring of received snapshots,
// keyed by sequence (spec.md §4.6). Capacity is conventionally
// 2 x SNAPSHOT_RATE, wide enough to hold both the interpolation window
// and some slack for jitter.
type SnapshotBuffer struct {
	capacity  int
	snapshots []*protocol.Snapshot // kept sorted ascending by Sequence
	byID      map[uint16]*protocol.Snapshot
}

// NewSnapshotBuffer creates a ring retaining at most capacity snapshots.
func NewSnapshotBuffer(capacity int) *SnapshotBuffer {
	return &SnapshotBuffer{
		capacity:  capacity,
		snapshots: make([]*protocol.Snapshot, 0, capacity),
		byID:      make(map[uint16]*protocol.Snapshot, capacity),
	}
}

// Insert records s, applying spec.md §4.6's drop rules: stale-or-out-of-
// order against a full buffer's oldest entry, and duplicates, are both
// silently dropped rather than causing an error — a late or replayed
// snapshot carries no new information the interpolator can use.
func (b *SnapshotBuffer) Insert(s *protocol.Snapshot) {
	if _, dup := b.byID[s.Sequence]; dup {
		return
	}
	if len(b.snapshots) >= b.capacity {
		front := b.snapshots[0]
		if !protocol.SequenceAfter(s.Sequence, front.Sequence) {
			return
		}
	}

	// The buffer only ever spans a small recent window, so a linear scan
	// for the insertion point is simpler than a binary search and cheap
	// enough not to matter; SequenceAfter (not plain <) is what makes
	// this correct across the u16 wraparound.
	idx := len(b.snapshots)
	for i, existing := range b.snapshots {
		if protocol.SequenceAfter(existing.Sequence, s.Sequence) {
			idx = i
			break
		}
	}
	b.snapshots = append(b.snapshots, nil)
	copy(b.snapshots[idx+1:], b.snapshots[idx:])
	b.snapshots[idx] = s
	b.byID[s.Sequence] = s

	for len(b.snapshots) > b.capacity {
		oldest := b.snapshots[0]
		b.snapshots = b.snapshots[1:]
		delete(b.byID, oldest.Sequence)
	}
}

// Get looks up a snapshot by sequence.
func (b *SnapshotBuffer) Get(sequence uint16) (*protocol.Snapshot, bool) {
	s, ok := b.byID[sequence]
	return s, ok
}

// Latest returns the highest-sequence snapshot (not necessarily the most
// recently inserted one), or nil if the buffer is empty.
func (b *SnapshotBuffer) Latest() *protocol.Snapshot {
	if len(b.snapshots) == 0 {
		return nil
	}
	return b.snapshots[len(b.snapshots)-1]
}

// Surrounding returns the adjacent pair (from, to) such that
// from.TimestampMs <= renderTimeMs <= to.TimestampMs, for Interpolator's
// per-frame sampling. If renderTimeMs is at or past the latest snapshot,
// both returned pointers are the latest snapshot (hold at latest). ok is
// false only if the buffer has no snapshots at all.
func (b *SnapshotBuffer) Surrounding(renderTimeMs uint32) (from, to *protocol.Snapshot, ok bool) {
	n := len(b.snapshots)
	if n == 0 {
		return nil, nil, false
	}
	latest := b.snapshots[n-1]
	if renderTimeMs >= latest.TimestampMs {
		return latest, latest, true
	}
	if renderTimeMs <= b.snapshots[0].TimestampMs {
		return b.snapshots[0], b.snapshots[0], true
	}
	for i := 0; i < n-1; i++ {
		if b.snapshots[i].TimestampMs <= renderTimeMs && renderTimeMs <= b.snapshots[i+1].TimestampMs {
			return b.snapshots[i], b.snapshots[i+1], true
		}
	}
	return latest, latest, true
}

// Len reports the number of snapshots currently retained.
func (b *SnapshotBuffer) Len() int {
	return len(b.snapshots)
}

// All returns every retained snapshot, oldest first. Intended for
// offline tooling (replay dumps, visual auditing) rather than the
// per-frame render path, which should use Surrounding instead.
func (b *SnapshotBuffer) All() []*protocol.Snapshot {
	out := make([]*protocol.Snapshot, len(b.snapshots))
	copy(out, b.snapshots)
	return out
}
