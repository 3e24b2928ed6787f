package protocol

import "testing"

func mkSnapshot(seq, baselineSeq uint16, entries ...SnapshotEntry) *Snapshot {
	return &Snapshot{
		Sequence:               seq,
		TimestampMs:            uint32(seq) * 100,
		BaselineSequence:       baselineSeq,
		PlayerEntityID:         1,
		LastProcessedInputTick: 10,
		States:                 entries,
	}
}

// approxEqualState compares a decoded state with its source up to
// quantization error: positions within 0.02 units, velocities within one
// 11-bit velocity step (2*MaxVelocity/velocityMaxCode, about 0.25), and
// discrete fields exactly.
func approxEqualState(t *testing.T, got, want EntityState) {
	t.Helper()
	const posTol = 0.02
	const velTol = 2 * MaxVelocity / velocityMaxCode
	if absf(got.Position.X-want.Position.X) > posTol || absf(got.Position.Y-want.Position.Y) > posTol ||
		absf(got.Velocity.X-want.Velocity.X) > velTol || absf(got.Velocity.Y-want.Velocity.Y) > velTol ||
		got.SpriteFrame != want.SpriteFrame || got.StateFlags != want.StateFlags || got.EntityType != want.EntityType {
		t.Fatalf("state mismatch: got %+v want %+v", got, want)
	}
}

func TestEncodeDecodeFullSnapshot(t *testing.T) {
	snap := mkSnapshot(1, 0,
		SnapshotEntry{ID: 1, State: EntityState{Position: Vec2{100, 200}, Velocity: Vec2{5, 0}, SpriteFrame: 2, EntityType: EntityPlayer}},
		SnapshotEntry{ID: 2, State: EntityState{Position: Vec2{150, 300}, Velocity: Vec2{0, 3}, SpriteFrame: 1, EntityType: EntityNPC}},
	)

	bytes := Encode(snap, nil)

	hdr, err := PeekHeader(bytes)
	if err != nil {
		t.Fatalf("peek header: %v", err)
	}
	if hdr.Sequence != 1 || hdr.BaselineSequence != 0 {
		t.Fatalf("unexpected header: %+v", hdr)
	}

	decoded, err := Decode(bytes, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.States) != 2 {
		t.Fatalf("expected 2 states, got %d", len(decoded.States))
	}
	for i, entry := range snap.States {
		if decoded.States[i].ID != entry.ID {
			t.Fatalf("entry %d: id mismatch got %d want %d", i, decoded.States[i].ID, entry.ID)
		}
		approxEqualState(t, decoded.States[i].State, entry.State)
	}
}

func TestDeltaUnchangedIsCompact(t *testing.T) {
	baseline := mkSnapshot(1, 0,
		SnapshotEntry{ID: 1, State: EntityState{Position: Vec2{100, 200}, Velocity: Vec2{5, 0}, SpriteFrame: 2}},
	)
	next := mkSnapshot(2, 1,
		SnapshotEntry{ID: 1, State: baseline.States[0].State},
	)

	bytes := Encode(next, baseline)

	// header (18 bytes) + varint(1) (1 byte) + 1 changed bit -> at most 20 bytes
	if len(bytes) > 20 {
		t.Fatalf("expected compact unchanged-delta encoding, got %d bytes", len(bytes))
	}

	decoded, err := Decode(bytes, baseline)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	approxEqualState(t, decoded.States[0].State, baseline.States[0].State)
}

func TestNewEntityAgainstBaselineWritesFullState(t *testing.T) {
	baseline := mkSnapshot(1, 0,
		SnapshotEntry{ID: 1, State: EntityState{Position: Vec2{1, 1}}},
		SnapshotEntry{ID: 2, State: EntityState{Position: Vec2{2, 2}}},
	)
	next := mkSnapshot(2, 1,
		SnapshotEntry{ID: 1, State: baseline.States[0].State},
		SnapshotEntry{ID: 2, State: baseline.States[1].State},
		SnapshotEntry{ID: 3, State: EntityState{Position: Vec2{0, 0}, EntityType: EntityNPC}},
	)

	bytes := Encode(next, baseline)
	decoded, err := Decode(bytes, baseline)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.States) != 3 {
		t.Fatalf("expected 3 states, got %d", len(decoded.States))
	}
	approxEqualState(t, decoded.States[2].State, next.States[2].State)
}

func TestPacketLossRecoveryWithStaleBaseline(t *testing.T) {
	s100 := mkSnapshot(100, 0,
		SnapshotEntry{ID: 1, State: EntityState{Position: Vec2{10, 10}}},
	)
	// S101 is "lost" — never delivered to the client, never touches its buffer.
	s102 := mkSnapshot(102, 100,
		SnapshotEntry{ID: 1, State: EntityState{Position: Vec2{12, 10}}},
	)

	bytes := Encode(s102, s100)
	decoded, err := Decode(bytes, s100)
	if err != nil {
		t.Fatalf("client with only S100 buffered must decode S102: %v", err)
	}
	if decoded.Sequence != 102 {
		t.Fatalf("expected sequence 102, got %d", decoded.Sequence)
	}
}

func TestDecodeBaselineMismatchIsRefused(t *testing.T) {
	baseline := mkSnapshot(5, 0, SnapshotEntry{ID: 1, State: EntityState{Position: Vec2{1, 1}}})
	next := mkSnapshot(6, 5, SnapshotEntry{ID: 1, State: EntityState{Position: Vec2{1, 1}}})

	bytes := Encode(next, baseline)

	wrongBaseline := mkSnapshot(4, 0, SnapshotEntry{ID: 1, State: EntityState{Position: Vec2{1, 1}}})
	if _, err := Decode(bytes, wrongBaseline); err != ErrBaselineMismatch {
		t.Fatalf("expected ErrBaselineMismatch, got %v", err)
	}
	if _, err := Decode(bytes, nil); err != ErrBaselineMismatch {
		t.Fatalf("expected ErrBaselineMismatch with nil baseline, got %v", err)
	}
}

func TestSequenceAfterHandlesWraparound(t *testing.T) {
	if !SequenceAfter(1, 65535) {
		t.Fatal("1 should be considered after 65535 (wraparound)")
	}
	if SequenceAfter(65535, 1) {
		t.Fatal("65535 should not be considered after 1")
	}
	if !SequenceAfter(10, 5) {
		t.Fatal("10 should be after 5")
	}
}

func TestSnapshotHistoryEvictsOldest(t *testing.T) {
	h := NewSnapshotHistory(3)
	for seq := uint16(1); seq <= 5; seq++ {
		h.Store(&Snapshot{Sequence: seq})
	}
	if h.Len() != 3 {
		t.Fatalf("expected 3 retained entries, got %d", h.Len())
	}
	if _, ok := h.Get(1); ok {
		t.Fatal("sequence 1 should have been evicted")
	}
	if _, ok := h.Get(5); !ok {
		t.Fatal("sequence 5 should still be present")
	}
}
