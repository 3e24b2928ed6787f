package world

import (
	"testing"

	"duelnet/internal/protocol"
)

func TestDefaultPhysicsEngineIntegratesVelocity(t *testing.T) {
	e := &protocol.Entity{ID: 1, Position: protocol.Vec2{X: 0, Y: 0}, Velocity: protocol.Vec2{X: 10, Y: 0}}
	p := NewDefaultPhysicsEngine()
	p.Resolve([]*protocol.Entity{e}, 1.0)

	if e.Position.X != 10 {
		t.Fatalf("expected position.x=10 after dt=1 at velocity 10, got %v", e.Position.X)
	}
}

func TestDefaultPhysicsEngineSeparatesOverlappingEntities(t *testing.T) {
	a := &protocol.Entity{ID: 1, Position: protocol.Vec2{X: 0, Y: 0}}
	b := &protocol.Entity{ID: 2, Position: protocol.Vec2{X: 10, Y: 0}} // well within 2*radius=56
	p := NewDefaultPhysicsEngine()
	p.Resolve([]*protocol.Entity{a, b}, 0)

	dx := b.Position.X - a.Position.X
	if dx < p.Radius*2-0.01 {
		t.Fatalf("expected entities pushed to at least 2*radius apart, got dx=%v", dx)
	}
}

func TestDefaultPhysicsEngineClampsToWorldBounds(t *testing.T) {
	e := &protocol.Entity{ID: 1, Position: protocol.Vec2{X: protocol.WorldMax, Y: 0}, Velocity: protocol.Vec2{X: 1000, Y: 0}}
	p := NewDefaultPhysicsEngine()
	p.Resolve([]*protocol.Entity{e}, 1.0)

	if e.Position.X > protocol.WorldMax {
		t.Fatalf("expected position clamped to WorldMax, got %v", e.Position.X)
	}
}
