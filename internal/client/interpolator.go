package client

import (
	"duelnet/internal/protocol"
)

// RenderState is the interpolator's per-frame output for one entity:
// blended position/velocity plus the discrete fields taken from
// whichever side of the blend spec.md §4.8 says to use.
type RenderState struct {
	Position    protocol.Vec2
	Velocity    protocol.Vec2
	SpriteFrame uint8
	StateFlags  uint8
	EntityType  protocol.EntityType
	// Leaving is true for an entity present only in the "from" snapshot
	// (it is absent from the latest interest set but held at its last
	// known pose pending the grace-window eviction spec.md §4.8
	// recommends).
	Leaving bool
}

// leavingGraceMs is the recommended grace window (spec.md §4.8) before a
// "leaving" entity is dropped from rendering entirely.
const leavingGraceMs = 500

// Interpolator maintains a render clock that trails the server's clock
// by TotalClientDelay, smoothly absorbing jitter by nudging its playback
// speed rather than snapping, and blends between the two snapshots that
// bracket the render clock with a Hermite spline so velocity
// discontinuities at snapshot boundaries don't show up as visual pops.
type Interpolator struct {
	buf              *SnapshotBuffer
	totalDelayMs     float64
	snapshotPeriodMs float64
	renderTimeMs     float64
	initialized      bool
	lastSeenAt       map[uint32]float64 // entity id -> render_time_ms when first found absent from "to"
}

// NewInterpolator builds an Interpolator reading from buf. totalDelayMs
// and snapshotRateHz come from NetworkConfig.TotalClientDelayMs and
// SimulationConfig.SnapshotRate.
func NewInterpolator(buf *SnapshotBuffer, totalDelayMs int, snapshotRateHz int) *Interpolator {
	return &Interpolator{
		buf:              buf,
		totalDelayMs:     float64(totalDelayMs),
		snapshotPeriodMs: 1000.0 / float64(snapshotRateHz),
		lastSeenAt:       make(map[uint32]float64),
	}
}

// Advance moves the render clock forward by dtMs given the current
// estimate of the server's wall clock (spec.md §4.8 steps 1-5).
func (ip *Interpolator) Advance(dtMs float64, serverTimeNowMs float64) {
	latest := ip.buf.Latest()
	if latest == nil {
		return
	}
	if !ip.initialized {
		ip.renderTimeMs = serverTimeNowMs - ip.totalDelayMs
		ip.initialized = true
	}

	target := serverTimeNowMs - ip.totalDelayMs
	errMs := target - ip.renderTimeMs

	timeScale := 1.0
	if absf64(errMs) > 10 {
		timeScale = clampf64(1.0+errMs*0.5/1000, 0.90, 1.10)
	}
	ip.renderTimeMs += dtMs * timeScale

	if ip.renderTimeMs > float64(latest.TimestampMs) {
		ip.renderTimeMs = float64(latest.TimestampMs)
	}
}

// RenderTimeMs returns the interpolator's current render clock reading.
func (ip *Interpolator) RenderTimeMs() float64 {
	return ip.renderTimeMs
}

// Sample blends every visible entity at the current render time
// (spec.md §4.8's entity interpolation). Entities absent long enough to
// exceed the grace window are omitted entirely.
func (ip *Interpolator) Sample() map[uint32]RenderState {
	from, to, ok := ip.buf.Surrounding(uint32(ip.renderTimeMs))
	out := make(map[uint32]RenderState)
	if !ok {
		return out
	}

	span := float64(to.TimestampMs) - float64(from.TimestampMs)
	t := 0.0
	if span > 1e-9 {
		t = clampf64((ip.renderTimeMs-float64(from.TimestampMs))/span, 0, 1)
	}

	seen := make(map[uint32]bool)
	for _, entry := range to.States {
		seen[entry.ID] = true
		fromState, inFrom := from.Lookup(entry.ID)
		if !inFrom {
			out[entry.ID] = RenderState{
				Position: entry.State.Position, Velocity: entry.State.Velocity,
				SpriteFrame: entry.State.SpriteFrame, StateFlags: entry.State.StateFlags,
				EntityType: entry.State.EntityType,
			}
			delete(ip.lastSeenAt, entry.ID)
			continue
		}
		out[entry.ID] = hermiteBlend(fromState, entry.State, t, ip.snapshotPeriodMs)
		delete(ip.lastSeenAt, entry.ID)
	}

	for _, entry := range from.States {
		if seen[entry.ID] {
			continue
		}
		lastSeen, tracked := ip.lastSeenAt[entry.ID]
		if !tracked {
			ip.lastSeenAt[entry.ID] = ip.renderTimeMs
			lastSeen = ip.renderTimeMs
		}
		if ip.renderTimeMs-lastSeen > leavingGraceMs {
			continue
		}
		out[entry.ID] = RenderState{
			Position: entry.State.Position, Velocity: entry.State.Velocity,
			SpriteFrame: entry.State.SpriteFrame, StateFlags: entry.State.StateFlags,
			EntityType: entry.State.EntityType, Leaving: true,
		}
	}

	return out
}

// hermiteBlend implements spec.md §4.8's cubic Hermite position blend
// between two bracketing snapshot states, with velocity linearly
// interpolated and discrete fields switched at the midpoint.
func hermiteBlend(from, to protocol.EntityState, t, dtSnapMs float64) RenderState {
	dtSnap := dtSnapMs / 1000.0
	t2 := t * t
	t3 := t2 * t

	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	pos := protocol.Vec2{
		X: h00*from.Position.X + h10*from.Velocity.X*dtSnap + h01*to.Position.X + h11*to.Velocity.X*dtSnap,
		Y: h00*from.Position.Y + h10*from.Velocity.Y*dtSnap + h01*to.Position.Y + h11*to.Velocity.Y*dtSnap,
	}
	vel := protocol.Vec2{
		X: lerp(from.Velocity.X, to.Velocity.X, t),
		Y: lerp(from.Velocity.Y, to.Velocity.Y, t),
	}

	state := from
	if t >= 0.5 {
		state = to
	}

	return RenderState{
		Position: pos, Velocity: vel,
		SpriteFrame: state.SpriteFrame, StateFlags: state.StateFlags, EntityType: state.EntityType,
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clampf64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absf64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
