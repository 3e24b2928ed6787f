package world

import (
	"sort"
	"sync"

	"duelnet/internal/protocol"
)

// InterestManager selects, per peer and per tick, the ordered set of
// entity ids the server will include in that peer's next snapshot. It
// wraps a ChunkIndex with the hysteresis-scored budget trim described in
// spec.md §4.3, grounded on internal/game/spatial/grid.go's
// preallocated-bucket spatial query style.
type InterestManager struct {
	index           *ChunkIndex
	chunkSize       float64
	radius          int32
	maxEntities     int
	hysteresisBonus float64

	mu                sync.Mutex
	previouslyVisible map[string]map[uint32]struct{}
}

// NewInterestManager builds an InterestManager over index.
func NewInterestManager(index *ChunkIndex, chunkSize float64, radius int32, maxEntities int, hysteresisBonus float64) *InterestManager {
	return &InterestManager{
		index:             index,
		chunkSize:         chunkSize,
		radius:            radius,
		maxEntities:       maxEntities,
		hysteresisBonus:   hysteresisBonus,
		previouslyVisible: make(map[string]map[uint32]struct{}),
	}
}

// RemovePeer discards a disconnected peer's hysteresis state.
func (im *InterestManager) RemovePeer(peerID string) {
	im.mu.Lock()
	delete(im.previouslyVisible, peerID)
	im.mu.Unlock()
}

type scoredEntity struct {
	id    uint32
	score float64
}

// SelectVisible implements spec.md §4.3 select_visible. entities supplies
// authoritative positions for scoring; it need only contain entities
// that might be candidates (the full world map is fine). The returned
// slice is sorted ascending by id, satisfying the Snapshot.States
// ordering invariant the caller will build a snapshot from directly.
func (im *InterestManager) SelectVisible(peerID string, playerEntityID uint32, centerPos protocol.Vec2, entities map[uint32]*protocol.Entity) []uint32 {
	center := WorldToChunk(centerPos, im.chunkSize)
	candidates := im.index.EntitiesInSquare(center, im.radius)

	present := make(map[uint32]struct{}, len(candidates)+1)
	for _, id := range candidates {
		present[id] = struct{}{}
	}
	present[playerEntityID] = struct{}{}

	ids := make([]uint32, 0, len(present))
	for id := range present {
		ids = append(ids, id)
	}

	if len(ids) > im.maxEntities {
		im.mu.Lock()
		prev := im.previouslyVisible[peerID]
		im.mu.Unlock()

		scored := make([]scoredEntity, 0, len(ids))
		for _, id := range ids {
			if id == playerEntityID {
				continue
			}
			e, ok := entities[id]
			if !ok {
				continue
			}
			dx := e.Position.X - centerPos.X
			dy := e.Position.Y - centerPos.Y
			distSq := dx*dx + dy*dy
			bonus := 0.0
			if _, wasVisible := prev[id]; wasVisible {
				bonus = im.hysteresisBonus
			}
			scored = append(scored, scoredEntity{id: id, score: distSq - bonus})
		}
		sort.Slice(scored, func(i, j int) bool {
			if scored[i].score != scored[j].score {
				return scored[i].score < scored[j].score
			}
			return scored[i].id < scored[j].id // deterministic tie-break
		})

		keep := im.maxEntities - 1
		if keep > len(scored) {
			keep = len(scored)
		}
		ids = ids[:0]
		ids = append(ids, playerEntityID)
		for i := 0; i < keep; i++ {
			ids = append(ids, scored[i].id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	newVisible := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		newVisible[id] = struct{}{}
	}
	im.mu.Lock()
	im.previouslyVisible[peerID] = newVisible
	im.mu.Unlock()

	return ids
}
