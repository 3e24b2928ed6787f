package world

import (
	"math"

	"duelnet/internal/protocol"
)

// PhysicsEngine is the external collaborator SimulationTick delegates
// position resolution to (spec.md §1, §4.4): it mutates entities in
// place and owns collision resolution. This package supplies a default
// implementation; a richer physics solver could replace it without
// touching anything else, since SimulationTick only depends on this
// interface.
type PhysicsEngine interface {
	Resolve(entities []*protocol.Entity, dt float64)
}

// DefaultPhysicsEngine integrates velocity into position, resolves
// circle-circle overlaps by pushing entities apart, and clamps to world
// bounds. Grounded on internal/game/player.go's ResolveCollisions
// (spatial-grid-driven circle push-apart) and its world-bounds clamp,
// generalized from "self vs. neighbors from a spatial grid" to "all
// entities passed in this tick", since chunk-index neighbor queries are
// InterestManager's concern, not the physics engine's.
type DefaultPhysicsEngine struct {
	Radius float64
}

// NewDefaultPhysicsEngine returns a physics engine using the standard
// entity collision radius.
func NewDefaultPhysicsEngine() *DefaultPhysicsEngine {
	return &DefaultPhysicsEngine{Radius: 28.0}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Resolve advances entities by dt and pushes apart any overlapping pair.
func (p *DefaultPhysicsEngine) Resolve(entities []*protocol.Entity, dt float64) {
	for _, e := range entities {
		e.Position.X += e.Velocity.X * dt
		e.Position.Y += e.Velocity.Y * dt
	}

	minDist := p.Radius * 2
	minDistSq := minDist * minDist
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			dx := b.Position.X - a.Position.X
			dy := b.Position.Y - a.Position.Y
			distSq := dx*dx + dy*dy
			if distSq >= minDistSq || distSq < 1e-9 {
				continue
			}
			dist := math.Sqrt(distSq)
			overlap := (minDist - dist) / 2
			nx, ny := dx/dist, dy/dist
			a.Position.X -= nx * overlap
			a.Position.Y -= ny * overlap
			b.Position.X += nx * overlap
			b.Position.Y += ny * overlap
		}
	}

	for _, e := range entities {
		e.Position.X = clampf(e.Position.X, protocol.WorldMin, protocol.WorldMax)
		e.Position.Y = clampf(e.Position.Y, protocol.WorldMin, protocol.WorldMax)
	}
}
