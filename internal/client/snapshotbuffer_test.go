package client

import (
	"testing"

	"duelnet/internal/protocol"
)

func snap(seq uint16, ts uint32) *protocol.Snapshot {
	return &protocol.Snapshot{Sequence: seq, TimestampMs: ts}
}

func TestSnapshotBufferInsertAndGet(t *testing.T) {
	b := NewSnapshotBuffer(4)
	b.Insert(snap(1, 100))
	b.Insert(snap(2, 200))

	if got, ok := b.Get(1); !ok || got.TimestampMs != 100 {
		t.Fatalf("expected sequence 1 at ts 100, got %+v ok=%v", got, ok)
	}
	if b.Latest().Sequence != 2 {
		t.Fatalf("expected latest sequence 2, got %d", b.Latest().Sequence)
	}
}

func TestSnapshotBufferDropsDuplicates(t *testing.T) {
	b := NewSnapshotBuffer(4)
	b.Insert(snap(5, 100))
	b.Insert(snap(5, 999)) // duplicate sequence, different payload: must be dropped

	got, _ := b.Get(5)
	if got.TimestampMs != 100 {
		t.Fatalf("expected first insert to win, got ts %d", got.TimestampMs)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", b.Len())
	}
}

func TestSnapshotBufferDropsStaleWhenFull(t *testing.T) {
	b := NewSnapshotBuffer(2)
	b.Insert(snap(10, 100))
	b.Insert(snap(11, 110))
	// Buffer is full; 9 is older than the front (10) and must be dropped.
	b.Insert(snap(9, 90))

	if b.Len() != 2 {
		t.Fatalf("expected stale insert to be dropped, len=%d", b.Len())
	}
	if _, ok := b.Get(9); ok {
		t.Fatal("expected sequence 9 to have been dropped")
	}
}

func TestSnapshotBufferEvictsOldestOverCapacity(t *testing.T) {
	b := NewSnapshotBuffer(2)
	b.Insert(snap(1, 100))
	b.Insert(snap(2, 200))
	b.Insert(snap(3, 300))

	if b.Len() != 2 {
		t.Fatalf("expected capacity-bounded len 2, got %d", b.Len())
	}
	if _, ok := b.Get(1); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if _, ok := b.Get(3); !ok {
		t.Fatal("expected newest entry to survive eviction")
	}
}

func TestSnapshotBufferSurroundingHoldsAtLatest(t *testing.T) {
	b := NewSnapshotBuffer(4)
	b.Insert(snap(1, 100))
	b.Insert(snap(2, 200))

	from, to, ok := b.Surrounding(500)
	if !ok || from.Sequence != 2 || to.Sequence != 2 {
		t.Fatalf("expected hold at latest, got from=%v to=%v ok=%v", from, to, ok)
	}
}

func TestSnapshotBufferSurroundingBracketsMiddle(t *testing.T) {
	b := NewSnapshotBuffer(4)
	b.Insert(snap(1, 100))
	b.Insert(snap(2, 200))
	b.Insert(snap(3, 300))

	from, to, ok := b.Surrounding(250)
	if !ok || from.Sequence != 2 || to.Sequence != 3 {
		t.Fatalf("expected bracket [2,3], got from=%v to=%v ok=%v", from, to, ok)
	}
}
