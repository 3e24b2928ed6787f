package client

import (
	"testing"

	"duelnet/internal/protocol"
)

func makeSnapshot(seq uint16, ts uint32, id uint32, x float64) *protocol.Snapshot {
	return &protocol.Snapshot{
		Sequence:    seq,
		TimestampMs: ts,
		States: []protocol.SnapshotEntry{
			{ID: id, State: protocol.EntityState{Position: protocol.Vec2{X: x}, Velocity: protocol.Vec2{X: 10}}},
		},
	}
}

func TestInterpolatorHoldsAtLatestWithoutExtrapolating(t *testing.T) {
	buf := NewSnapshotBuffer(4)
	buf.Insert(makeSnapshot(1, 1000, 7, 0))
	buf.Insert(makeSnapshot(2, 1100, 7, 10))

	ip := NewInterpolator(buf, 150, 10)
	// serverTimeNowMs far past the latest snapshot's timestamp.
	ip.Advance(16, 5000)

	if ip.RenderTimeMs() > 1100 {
		t.Fatalf("expected render clock clamped to latest timestamp 1100, got %f", ip.RenderTimeMs())
	}
}

func TestInterpolatorBlendsBetweenSnapshots(t *testing.T) {
	buf := NewSnapshotBuffer(4)
	buf.Insert(makeSnapshot(1, 1000, 7, 0))
	buf.Insert(makeSnapshot(2, 1100, 7, 10))

	ip := NewInterpolator(buf, 0, 10)
	ip.renderTimeMs = 1050 // midpoint, bypass Advance's smoothing for a deterministic sample
	ip.initialized = true

	states := ip.Sample()
	s, ok := states[7]
	if !ok {
		t.Fatal("expected entity 7 present in the blended output")
	}
	if s.Position.X < 0 || s.Position.X > 10 {
		t.Fatalf("expected blended X between 0 and 10, got %f", s.Position.X)
	}
}

func TestInterpolatorEnteringEntitySnapsToTo(t *testing.T) {
	buf := NewSnapshotBuffer(4)
	buf.Insert(&protocol.Snapshot{Sequence: 1, TimestampMs: 1000}) // entity 9 absent
	buf.Insert(makeSnapshot(2, 1100, 9, 42))

	ip := NewInterpolator(buf, 0, 10)
	ip.renderTimeMs = 1099
	ip.initialized = true

	states := ip.Sample()
	s, ok := states[9]
	if !ok || s.Position.X != 42 {
		t.Fatalf("expected entering entity snapped to its 'to' state, got %+v ok=%v", s, ok)
	}
}

func TestInterpolatorLeavingEntityHeldWithinGraceWindow(t *testing.T) {
	buf := NewSnapshotBuffer(4)
	buf.Insert(makeSnapshot(1, 1000, 3, 5))
	buf.Insert(&protocol.Snapshot{Sequence: 2, TimestampMs: 1100}) // entity 3 gone

	ip := NewInterpolator(buf, 0, 10)
	ip.renderTimeMs = 1050
	ip.initialized = true

	states := ip.Sample()
	s, ok := states[3]
	if !ok || !s.Leaving {
		t.Fatalf("expected leaving entity held within grace window, got %+v ok=%v", s, ok)
	}
}
