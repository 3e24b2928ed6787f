// Package world holds the authoritative entity store, the spatial chunk
// index, and interest management built on top of it. Structure is
// adapted from the teacher's internal/game/spatial package (preallocated
// buckets, integer indices rather than pointers) but the membership rule
// is exact chunk containment, not a radius query with narrow-phase
// filtering — spec.md's InterestManager wants simple chunk-square
// membership, not distance checks at this layer.
package world

import (
	"math"

	"duelnet/internal/protocol"
)

// ChunkCoord is an integer 2D chunk coordinate at CHUNK_SIZE granularity.
type ChunkCoord struct {
	CX, CY int32
}

// WorldToChunk floor-divides a world position by chunkSize.
func WorldToChunk(pos protocol.Vec2, chunkSize float64) ChunkCoord {
	return ChunkCoord{
		CX: int32(math.Floor(pos.X / chunkSize)),
		CY: int32(math.Floor(pos.Y / chunkSize)),
	}
}

// ChunkIndex maps chunk coordinates to the set of entity ids currently
// occupying them. Update is O(1): it removes the entity from its prior
// bucket (tracked in entityChunk) and inserts it into the new one. The
// ChunkIndex-consistency invariant — exactly one (chunk, entry)
// relationship per entity — holds because Update and Remove are the only
// ways to mutate membership, and both keep entityChunk and the buckets in
// step.
type ChunkIndex struct {
	chunkSize   float64
	chunks      map[ChunkCoord]map[uint32]struct{}
	entityChunk map[uint32]ChunkCoord
}

// NewChunkIndex creates an index at the given chunk granularity.
func NewChunkIndex(chunkSize float64) *ChunkIndex {
	return &ChunkIndex{
		chunkSize:   chunkSize,
		chunks:      make(map[ChunkCoord]map[uint32]struct{}),
		entityChunk: make(map[uint32]ChunkCoord),
	}
}

// Update recomputes id's chunk from pos and migrates bucket membership if
// it changed. A no-op if the entity's chunk is unchanged.
func (c *ChunkIndex) Update(id uint32, pos protocol.Vec2) {
	newChunk := WorldToChunk(pos, c.chunkSize)
	if old, ok := c.entityChunk[id]; ok {
		if old == newChunk {
			return
		}
		c.removeFromBucket(old, id)
	}
	if c.chunks[newChunk] == nil {
		c.chunks[newChunk] = make(map[uint32]struct{})
	}
	c.chunks[newChunk][id] = struct{}{}
	c.entityChunk[id] = newChunk
}

// Remove drops id from the index entirely (despawn).
func (c *ChunkIndex) Remove(id uint32) {
	if old, ok := c.entityChunk[id]; ok {
		c.removeFromBucket(old, id)
		delete(c.entityChunk, id)
	}
}

func (c *ChunkIndex) removeFromBucket(coord ChunkCoord, id uint32) {
	bucket := c.chunks[coord]
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(c.chunks, coord)
	}
}

// ChunkOf returns the chunk an entity currently occupies.
func (c *ChunkIndex) ChunkOf(id uint32) (ChunkCoord, bool) {
	cc, ok := c.entityChunk[id]
	return cc, ok
}

// EntitiesInSquare collects every entity id in the (2r+1)x(2r+1) chunk
// square centered on center. Order is unspecified; callers that need
// determinism sort afterward (InterestManager does, for the tie-break
// rule the encoding depends on).
func (c *ChunkIndex) EntitiesInSquare(center ChunkCoord, r int32) []uint32 {
	var ids []uint32
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			coord := ChunkCoord{CX: center.CX + dx, CY: center.CY + dy}
			for id := range c.chunks[coord] {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Contains reports whether id is recorded in chunk.
func (c *ChunkIndex) Contains(chunk ChunkCoord, id uint32) bool {
	_, ok := c.chunks[chunk][id]
	return ok
}
