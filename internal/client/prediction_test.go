package client

import (
	"math"
	"testing"

	"duelnet/internal/protocol"
	"duelnet/internal/world"
)

func TestPredictionControllerStepMovesByPlayerSpeed(t *testing.T) {
	physics := world.NewDefaultPhysicsEngine()
	pc := NewPredictionController(physics, 200.0, 2.0, protocol.Vec2{})
	pc.SetTickDelta(1.0 / 30.0)

	pc.Step(1, protocol.Vec2{X: 1, Y: 0})

	pos := pc.Position()
	expected := 200.0 * (1.0 / 30.0)
	if math.Abs(pos.X-expected) > 1e-6 {
		t.Fatalf("expected X moved by %f, got %f", expected, pos.X)
	}
}

func TestPredictionControllerReconcileNoOpWithinThreshold(t *testing.T) {
	physics := world.NewDefaultPhysicsEngine()
	pc := NewPredictionController(physics, 200.0, 2.0, protocol.Vec2{})
	pc.SetTickDelta(1.0 / 30.0)

	pc.Step(1, protocol.Vec2{X: 1, Y: 0})
	predicted := pc.Position()

	// Server agrees almost exactly: well within the 2.0-unit threshold.
	pc.Reconcile(1, protocol.Vec2{X: predicted.X + 0.1, Y: predicted.Y})

	if math.Abs(pc.Position().X-predicted.X) > 0.5 {
		t.Fatalf("expected reconcile to leave position essentially unchanged, got %f vs %f", pc.Position().X, predicted.X)
	}
}

func TestPredictionControllerReconcileSnapsAndReplaysBeyondThreshold(t *testing.T) {
	physics := world.NewDefaultPhysicsEngine()
	pc := NewPredictionController(physics, 200.0, 2.0, protocol.Vec2{})
	pc.SetTickDelta(1.0 / 30.0)

	pc.Step(1, protocol.Vec2{X: 1, Y: 0})
	pc.Step(2, protocol.Vec2{X: 1, Y: 0})

	// Server disagrees wildly about tick 1's resulting position.
	pc.Reconcile(1, protocol.Vec2{X: 500, Y: 500})

	pos := pc.Position()
	// After snapping to (500,500) and replaying tick 2's input, X should
	// have advanced further past 500 rather than sitting exactly there.
	if pos.X <= 500 {
		t.Fatalf("expected replay to advance position past the server snap, got %f", pos.X)
	}
}

func TestPredictionControllerReconcileSnapsWhenHistoryMissing(t *testing.T) {
	physics := world.NewDefaultPhysicsEngine()
	pc := NewPredictionController(physics, 200.0, 2.0, protocol.Vec2{})
	pc.SetTickDelta(1.0 / 30.0)

	pc.Step(1, protocol.Vec2{X: 1, Y: 0})

	// Server references a tick this controller never recorded.
	pc.Reconcile(99, protocol.Vec2{X: 7, Y: 7})

	pos := pc.Position()
	if pos.X != 7 || pos.Y != 7 {
		t.Fatalf("expected snap to server position on missing history, got %+v", pos)
	}
}
