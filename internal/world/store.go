package world

import (
	"sync"

	"duelnet/internal/protocol"
)

// World is the authoritative entity arena. Per spec.md §9's "cyclic
// graph -> arena indexed by entity_id" mapping, entities are looked up
// by id rather than held by pointer from other subsystems; the physics
// engine and interest manager both operate on ids and the slices/maps
// this type exposes, never on back-references into World itself.
//
// The simulation task moves entities each tick, while spawns and
// despawns arrive from connection goroutines through
// ServerProtocol.Connect/Disconnect; the mutex serializes those calls
// with the tick's own locked methods and with readers on other
// goroutines.
type World struct {
	mu         sync.RWMutex
	entities   map[uint32]*protocol.Entity
	chunkIndex *ChunkIndex
	nextID     uint32
	chunkSize  float64
}

// NewWorld creates an empty world with the given chunk granularity.
func NewWorld(chunkSize float64) *World {
	return &World{
		entities:   make(map[uint32]*protocol.Entity),
		chunkIndex: NewChunkIndex(chunkSize),
		chunkSize:  chunkSize,
	}
}

// ChunkIndex exposes the world's spatial index for InterestManager.
func (w *World) ChunkIndex() *ChunkIndex {
	return w.chunkIndex
}

func (w *World) allocID() uint32 {
	w.nextID++
	return w.nextID
}

// SpawnPlayer creates a Player entity owned by peerID at pos.
func (w *World) SpawnPlayer(peerID string, pos protocol.Vec2) *protocol.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := &protocol.Entity{
		ID:        w.allocID(),
		Type:      protocol.EntityPlayer,
		Position:  pos,
		OwnerPeer: peerID,
	}
	w.entities[e.ID] = e
	w.chunkIndex.Update(e.ID, e.Position)
	return e
}

// SpawnNPC creates a server-driven NPC entity.
func (w *World) SpawnNPC(pos protocol.Vec2) *protocol.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := &protocol.Entity{
		ID:       w.allocID(),
		Type:     protocol.EntityNPC,
		Position: pos,
	}
	w.entities[e.ID] = e
	w.chunkIndex.Update(e.ID, e.Position)
	return e
}

// SpawnMovingObstacle creates a scripted entity that ping-pongs between
// start and end at speed (spec.md §4.4 step 4).
func (w *World) SpawnMovingObstacle(start, end protocol.Vec2, speed float64) *protocol.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := &protocol.Entity{
		ID:       w.allocID(),
		Type:     protocol.EntityMovingObstacle,
		Position: start,
		ScriptedState: protocol.ScriptedMotion{
			Start:      start,
			End:        end,
			Speed:      speed,
			GoingToEnd: true,
		},
	}
	w.entities[e.ID] = e
	w.chunkIndex.Update(e.ID, e.Position)
	return e
}

// Despawn removes an entity (peer disconnect or game logic) and cleans
// up its chunk membership.
func (w *World) Despawn(id uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.entities, id)
	w.chunkIndex.Remove(id)
}

// Get returns the entity with id, if present.
func (w *World) Get(id uint32) (*protocol.Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	return e, ok
}

// EntityByPeer finds the Player entity owned by peerID, if any.
func (w *World) EntityByPeer(peerID string) (*protocol.Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, e := range w.entities {
		if e.Type == protocol.EntityPlayer && e.OwnerPeer == peerID {
			return e, true
		}
	}
	return nil, false
}

// All returns a snapshot slice of every live entity pointer. Callers in
// the simulation task may mutate the pointed-to entities directly (that
// task is the sole writer); any other caller must treat the result as
// read-only.
func (w *World) All() []*protocol.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*protocol.Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	return out
}

// AsMap exposes the live entity map for InterestManager scoring. Callers
// must not retain it past the current tick.
func (w *World) AsMap() map[uint32]*protocol.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities
}

// SyncChunk updates the chunk index for id to match its current
// position. Called by SimulationTick after PhysicsEngine.Resolve.
func (w *World) SyncChunk(id uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return
	}
	w.chunkIndex.Update(id, e.Position)
}

// Len reports the number of live entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}
