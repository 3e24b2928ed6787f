package world

import (
	"testing"

	"duelnet/internal/protocol"
)

func TestChunkIndexUpdateMigratesMembership(t *testing.T) {
	idx := NewChunkIndex(64)
	idx.Update(1, protocol.Vec2{X: 10, Y: 10})

	c0, ok := idx.ChunkOf(1)
	if !ok || c0 != (ChunkCoord{0, 0}) {
		t.Fatalf("expected chunk (0,0), got %v ok=%v", c0, ok)
	}
	if !idx.Contains(ChunkCoord{0, 0}, 1) {
		t.Fatal("expected entity 1 in chunk (0,0)")
	}

	idx.Update(1, protocol.Vec2{X: 200, Y: 10})
	c1, _ := idx.ChunkOf(1)
	if c1 == c0 {
		t.Fatal("expected chunk to change after large position move")
	}
	if idx.Contains(c0, 1) {
		t.Fatal("entity should no longer be in its old chunk")
	}
	if !idx.Contains(c1, 1) {
		t.Fatal("entity should be in its new chunk")
	}
}

func TestChunkIndexNegativeCoordinatesFloorDivide(t *testing.T) {
	idx := NewChunkIndex(64)
	idx.Update(1, protocol.Vec2{X: -10, Y: -10})
	c, _ := idx.ChunkOf(1)
	if c.CX != -1 || c.CY != -1 {
		t.Fatalf("expected floor-divide to (-1,-1), got %v", c)
	}
}

func TestChunkIndexRemoveCleansEmptyBucket(t *testing.T) {
	idx := NewChunkIndex(64)
	idx.Update(1, protocol.Vec2{X: 0, Y: 0})
	idx.Remove(1)
	if _, ok := idx.ChunkOf(1); ok {
		t.Fatal("removed entity should not resolve to a chunk")
	}
	if idx.Contains(ChunkCoord{0, 0}, 1) {
		t.Fatal("removed entity should not be reported as contained")
	}
}

func TestEntitiesInSquareCollectsNeighbors(t *testing.T) {
	idx := NewChunkIndex(64)
	idx.Update(1, protocol.Vec2{X: 0, Y: 0})    // chunk (0,0)
	idx.Update(2, protocol.Vec2{X: 70, Y: 0})   // chunk (1,0)
	idx.Update(3, protocol.Vec2{X: 1000, Y: 0}) // far away

	ids := idx.EntitiesInSquare(ChunkCoord{0, 0}, 1)
	found := map[uint32]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found[1] || !found[2] {
		t.Fatalf("expected 1 and 2 in radius-1 square, got %v", ids)
	}
	if found[3] {
		t.Fatal("entity 3 should be outside the radius-1 square")
	}
}
