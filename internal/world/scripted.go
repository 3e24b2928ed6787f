package world

import (
	"math"

	"duelnet/internal/protocol"
)

// DriveScriptedMotion advances a MovingObstacle's ping-pong state machine
// one tick (spec.md §4.4 step 4): it travels toward its current target at
// ScriptedState.Speed and flips direction once within 10 world units.
func (w *World) DriveScriptedMotion(id uint32, dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entities[id]
	if !ok || e.ScriptedState.Speed == 0 {
		return
	}

	target := e.ScriptedState.End
	if !e.ScriptedState.GoingToEnd {
		target = e.ScriptedState.Start
	}

	dx := target.X - e.Position.X
	dy := target.Y - e.Position.Y
	dist := math.Hypot(dx, dy)

	if dist < 10.0 {
		e.ScriptedState.GoingToEnd = !e.ScriptedState.GoingToEnd
		target = e.ScriptedState.End
		if !e.ScriptedState.GoingToEnd {
			target = e.ScriptedState.Start
		}
		dx = target.X - e.Position.X
		dy = target.Y - e.Position.Y
		dist = math.Hypot(dx, dy)
	}

	if dist < 1e-9 {
		e.Velocity = protocol.Vec2{}
		return
	}
	e.Velocity = protocol.Vec2{X: dx / dist * e.ScriptedState.Speed, Y: dy / dist * e.ScriptedState.Speed}
}
