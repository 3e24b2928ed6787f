package client

import (
	"math"

	"duelnet/internal/observability"
	"duelnet/internal/protocol"
	"duelnet/internal/world"
)

// PredictedState is the local player's predicted pose at one tick,
// kept alongside the InputCommand that produced it so reconciliation
// can re-derive it after a correction.
type PredictedState struct {
	Tick     uint32
	Position protocol.Vec2
	Velocity protocol.Vec2
}

// predictionHistoryCapacity bounds the input/predicted-state rings at
// >= 2s worth of ticks at the highest tick rate this protocol targets
// (spec.md §4.9: "each >= 2s worth of ticks").
const predictionHistoryCapacity = 64

// PredictionController runs client-side prediction for the local
// player only: it applies the same motion rule the server uses so the
// player's own movement feels instant, then reconciles against each
// authoritative snapshot that reports back what tick the server
// actually processed. Grounded on the server's simulation.Driver step
// order (apply input -> physics.Resolve) so the two paths can only ever
// diverge from real simulation differences (other players, scripted
// obstacles), never from a different motion formula.
type PredictionController struct {
	physics     world.PhysicsEngine
	playerSpeed float64
	threshold   float64

	inputs    []InputRecord
	predicted []PredictedState
	current   protocol.Vec2 // current predicted position
	velocity  protocol.Vec2
	tickDelta float64
}

// InputRecord pairs a tick with the direction captured for it.
type InputRecord struct {
	Tick      uint32
	Direction protocol.Vec2
}

// NewPredictionController builds a controller seeded at spawnPos.
// physics must be the same engine implementation (and radius) the
// server's simulation.Driver uses, since divergence here is exactly
// what reconciliation exists to correct for.
func NewPredictionController(physics world.PhysicsEngine, playerSpeed, reconcileThreshold float64, spawnPos protocol.Vec2) *PredictionController {
	return &PredictionController{
		physics:     physics,
		playerSpeed: playerSpeed,
		threshold:   reconcileThreshold,
		inputs:      make([]InputRecord, 0, predictionHistoryCapacity),
		predicted:   make([]PredictedState, 0, predictionHistoryCapacity),
		current:     spawnPos,
	}
}

func normalizeDirection(v protocol.Vec2) protocol.Vec2 {
	mag := v.X*v.X + v.Y*v.Y
	if mag < 1e-12 {
		return protocol.Vec2{}
	}
	inv := 1.0 / math.Sqrt(mag)
	return protocol.Vec2{X: v.X * inv, Y: v.Y * inv}
}

// Step applies one local prediction tick: normalizes direction, moves
// the local player with the shared motion rule, appends to both rings,
// and evicts the oldest entry once the ring exceeds its capacity
// (spec.md §4.9 steps 1-3).
func (pc *PredictionController) Step(tick uint32, direction protocol.Vec2) PredictedState {
	dir := normalizeDirection(direction)
	pc.velocity = protocol.Vec2{X: dir.X * pc.playerSpeed, Y: dir.Y * pc.playerSpeed}

	self := &protocol.Entity{Position: pc.current, Velocity: pc.velocity}
	pc.physics.Resolve([]*protocol.Entity{self}, pc.tickDelta)
	pc.current = self.Position

	ps := PredictedState{Tick: tick, Position: pc.current, Velocity: pc.velocity}
	pc.inputs = append(pc.inputs, InputRecord{Tick: tick, Direction: dir})
	pc.predicted = append(pc.predicted, ps)
	if len(pc.inputs) > predictionHistoryCapacity {
		pc.inputs = pc.inputs[1:]
	}
	if len(pc.predicted) > predictionHistoryCapacity {
		pc.predicted = pc.predicted[1:]
	}
	return ps
}

// SetTickDelta configures the fixed per-tick duration (1/TickRate) used
// by Step's physics integration. Must be called once before the first
// Step.
func (pc *PredictionController) SetTickDelta(dt float64) {
	pc.tickDelta = dt
}

// Position returns the current predicted local-player position.
func (pc *PredictionController) Position() protocol.Vec2 {
	return pc.current
}

// Reconcile applies spec.md §4.9's reconciliation rule against an
// authoritative snapshot for the local player: snap-and-clear when the
// server's processed tick isn't in history at all, snap-and-replay when
// the divergence exceeds ReconcileThreshold, or a silent no-op
// otherwise (same outcome either way for predicted state at ticks
// <= T_server, which are evicted here).
func (pc *PredictionController) Reconcile(serverProcessedTick uint32, serverPosition protocol.Vec2) {
	idx := -1
	for i, p := range pc.predicted {
		if p.Tick == serverProcessedTick {
			idx = i
			break
		}
	}
	if idx < 0 {
		pc.current = serverPosition
		pc.evictThroughTick(serverProcessedTick)
		return
	}

	predictedAtT := pc.predicted[idx]
	errPos := protocol.Vec2{X: predictedAtT.Position.X - serverPosition.X, Y: predictedAtT.Position.Y - serverPosition.Y}
	errMag := math.Sqrt(errPos.X*errPos.X + errPos.Y*errPos.Y)

	if errMag > pc.threshold {
		observability.IncReconcileCorrection()
		pc.current = serverPosition
		for i := idx + 1; i < len(pc.predicted); i++ {
			dir := pc.inputs[i].Direction
			vel := protocol.Vec2{X: dir.X * pc.playerSpeed, Y: dir.Y * pc.playerSpeed}
			self := &protocol.Entity{Position: pc.current, Velocity: vel}
			pc.physics.Resolve([]*protocol.Entity{self}, pc.tickDelta)
			pc.current = self.Position
			pc.predicted[i] = PredictedState{Tick: pc.inputs[i].Tick, Position: pc.current, Velocity: vel}
		}
	}

	pc.evictThroughTick(serverProcessedTick)
}

func (pc *PredictionController) evictThroughTick(tick uint32) {
	cut := 0
	for cut < len(pc.predicted) && pc.predicted[cut].Tick <= tick {
		cut++
	}
	pc.predicted = pc.predicted[cut:]

	cutIn := 0
	for cutIn < len(pc.inputs) && pc.inputs[cutIn].Tick <= tick {
		cutIn++
	}
	pc.inputs = pc.inputs[cutIn:]
}
