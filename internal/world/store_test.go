package world

import (
	"testing"

	"duelnet/internal/protocol"
)

func TestSpawnAndDespawnPlayer(t *testing.T) {
	w := NewWorld(64)
	e := w.SpawnPlayer("peer-1", protocol.Vec2{X: 5, Y: 5})
	if e.ID == 0 {
		t.Fatal("expected non-zero entity id")
	}
	if got, ok := w.Get(e.ID); !ok || got != e {
		t.Fatal("expected to find spawned entity by id")
	}
	if found, ok := w.EntityByPeer("peer-1"); !ok || found.ID != e.ID {
		t.Fatal("expected to find entity by owner peer")
	}

	w.Despawn(e.ID)
	if _, ok := w.Get(e.ID); ok {
		t.Fatal("expected entity gone after despawn")
	}
	if _, ok := w.ChunkIndex().ChunkOf(e.ID); ok {
		t.Fatal("expected chunk membership removed after despawn")
	}
}

func TestSyncChunkFollowsPositionChange(t *testing.T) {
	w := NewWorld(64)
	e := w.SpawnNPC(protocol.Vec2{X: 0, Y: 0})
	before, _ := w.ChunkIndex().ChunkOf(e.ID)

	e.Position = protocol.Vec2{X: 500, Y: 500}
	w.SyncChunk(e.ID)

	after, _ := w.ChunkIndex().ChunkOf(e.ID)
	if before == after {
		t.Fatal("expected chunk to change after SyncChunk following a large move")
	}
}

func TestMovingObstacleSpawnedWithScriptedState(t *testing.T) {
	w := NewWorld(64)
	e := w.SpawnMovingObstacle(protocol.Vec2{X: 0, Y: 0}, protocol.Vec2{X: 100, Y: 0}, 10)
	if e.Type != protocol.EntityMovingObstacle {
		t.Fatalf("expected MovingObstacle type, got %v", e.Type)
	}
	if !e.ScriptedState.GoingToEnd {
		t.Fatal("expected obstacle to start heading toward its end point")
	}
}
