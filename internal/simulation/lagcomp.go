package simulation

import (
	"math"
	"sync"

	"duelnet/internal/protocol"
)

// HitRadius is the circle radius used for server-side hit verification
// (spec.md §4.10).
const HitRadius = 16.0

// LagComp retains a bounded ring of per-tick entity positions so a hit
// claimed at a client-reported time can be verified against the world as
// that client actually saw it, not as it is "right now" on the server.
// Grounded on internal/game/hitbox.go's ray-circle intersection math,
// generalized from its live-position check to a historical rewind.
type LagComp struct {
	mu      sync.Mutex
	history map[uint64]map[uint32]protocol.Vec2
	order   []uint64
	maxSize int
}

// NewLagComp creates a lag-compensation ring retaining maxTicks frames.
func NewLagComp(maxTicks int) *LagComp {
	return &LagComp{
		history: make(map[uint64]map[uint32]protocol.Vec2, maxTicks),
		maxSize: maxTicks,
	}
}

// Record stores the position of every entity at tick, evicting ticks
// older than maxSize frames back (spec.md §4.4 step 5).
func (l *LagComp) Record(tick uint64, entities []*protocol.Entity) {
	frame := make(map[uint32]protocol.Vec2, len(entities))
	for _, e := range entities {
		frame[e.ID] = e.Position
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[tick] = frame
	l.order = append(l.order, tick)
	for len(l.order) > l.maxSize {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.history, oldest)
	}
}

// VerifyHit implements spec.md §4.10: rewinds the world to the tick
// implied by clientReportedTimeMs, interpolates entity positions between
// the bracketing frames, and returns the id of the closest entity the ray
// actually intersects, if any.
func (l *LagComp) VerifyHit(tickRate int, currentTick uint64, origin, directionUnit protocol.Vec2, clientReportedTimeMs float64) (uint32, bool) {
	tFloat := clientReportedTimeMs * float64(tickRate) / 1000.0
	t0 := uint64(math.Floor(tFloat))
	t1 := t0 + 1
	alpha := tFloat - float64(t0)

	l.mu.Lock()
	frame0, ok := l.history[t0]
	frame1, hasNext := l.history[t1]
	l.mu.Unlock()

	if !ok {
		if diff := int64(currentTick) - int64(t0); diff > -2 && diff < 2 {
			frame0, ok = l.history[currentTick]
			frame1, hasNext = frame0, true
			alpha = 0
		}
		if !ok {
			return 0, false
		}
	}
	if !hasNext {
		frame1 = frame0
	}

	var (
		bestID    uint32
		bestParam = math.Inf(1)
		found     bool
	)
	for id, p0 := range frame0 {
		p1, ok := frame1[id]
		if !ok {
			p1 = p0
		}
		pos := protocol.Vec2{
			X: p0.X + (p1.X-p0.X)*alpha,
			Y: p0.Y + (p1.Y-p0.Y)*alpha,
		}
		if t, hit := rayCircleIntersect(origin, directionUnit, pos, HitRadius); hit && t >= 0 && t < bestParam {
			bestParam = t
			bestID = id
			found = true
		}
	}
	return bestID, found
}

// rayCircleIntersect returns the smallest non-negative ray parameter t at
// which a ray from origin in direction dir (assumed unit length) meets
// the boundary of the circle of radius r centered at c (the exit point
// when origin is inside the circle), or ok=false if it never does.
func rayCircleIntersect(origin, dir, center protocol.Vec2, r float64) (float64, bool) {
	ox, oy := origin.X-center.X, origin.Y-center.Y
	b := ox*dir.X + oy*dir.Y
	c := ox*ox + oy*oy - r*r
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sqrtDisc := math.Sqrt(disc)
	t0 := -b - sqrtDisc
	t1 := -b + sqrtDisc
	if t0 >= 0 {
		return t0, true
	}
	if t1 >= 0 {
		return t1, true
	}
	return 0, false
}
