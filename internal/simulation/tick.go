// Package simulation implements the fixed-timestep authoritative tick
// loop: input application, physics delegation, scripted-entity motion,
// lag-compensation history, and the snapshot-phase trigger. Grounded on
// internal/game/engine.go's ticker-driven loop, adapted from a fixed
// tickRate-only driver to the accumulator pattern spec.md §4.4 requires
// so the loop can catch up after a stall without a timestamp jump.
package simulation

import (
	"context"
	"math"
	"sync"
	"time"

	"duelnet/internal/config"
	"duelnet/internal/observability"
	"duelnet/internal/protocol"
	"duelnet/internal/world"
)

// InputCommand is one queued player input, keyed by the client tick it
// was generated on (spec.md §4.4 step 1, §4.5).
type InputCommand struct {
	Tick      uint32
	Direction protocol.Vec2
}

// Driver owns the authoritative tick loop. One Driver per server process;
// it is the sole writer of World per the concurrency model, so every
// exported method that mutates state takes the internal lock itself
// rather than relying on callers to synchronize.
type Driver struct {
	cfg       config.SimulationConfig
	tickDelta float64

	world   *world.World
	physics world.PhysicsEngine
	lagComp *LagComp

	onSnapshotTick func(currentTick uint64)
	onPreStep      func()

	mu          sync.Mutex
	pending     map[string][]InputCommand
	currentTick uint64
	running     bool
	startedAt   time.Time
}

// NewDriver builds a Driver over w using physics for collision
// resolution. lagComp may be nil if hit-verification is not needed (e.g.
// in tests).
func NewDriver(cfg config.SimulationConfig, w *world.World, physics world.PhysicsEngine, lagComp *LagComp) *Driver {
	return &Driver{
		cfg:       cfg,
		tickDelta: 1.0 / float64(cfg.TickRate),
		world:     w,
		physics:   physics,
		lagComp:   lagComp,
		pending:   make(map[string][]InputCommand),
	}
}

// OnSnapshotTick registers the callback invoked whenever the tick loop
// crosses a snapshot boundary (spec.md §4.4 step 6). Must be called
// before Run.
func (d *Driver) OnSnapshotTick(fn func(currentTick uint64)) {
	d.onSnapshotTick = fn
}

// OnPreStep registers a callback invoked at the very start of every step,
// before inputs are drained. ServerProtocol uses this to flush its
// transport-facing input queue into EnqueueInput exactly once per tick.
func (d *Driver) OnPreStep(fn func()) {
	d.onPreStep = fn
}

// CurrentTick reports the most recently completed simulation tick.
func (d *Driver) CurrentTick() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentTick
}

// ElapsedWallClockMs returns the wall-clock time since the loop started,
// in milliseconds. spec.md §4.4 requires timestamp_ms to be derived from
// this monotonic clock rather than current_tick, so a stalled-then-
// recovered loop never reports time moving backward or jumping.
func (d *Driver) ElapsedWallClockMs() uint32 {
	d.mu.Lock()
	start := d.startedAt
	d.mu.Unlock()
	if start.IsZero() {
		return 0
	}
	return uint32(time.Since(start).Milliseconds())
}

// EnqueueInput queues a player input for the next step that drains it.
// Multiple inputs for the same peer in one step window are resolved to
// the one with the highest Tick (spec.md §4.4 step 1: "most recent by
// tick"), so callers do not need to pre-filter.
func (d *Driver) EnqueueInput(peerID string, cmd InputCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[peerID] = append(d.pending[peerID], cmd)
}

// Run drives the fixed-timestep loop until ctx is cancelled. A
// time.Ticker provides wakeups at roughly TickRate; the accumulator
// absorbs scheduler jitter and replays multiple steps back-to-back if a
// wakeup was delayed, rather than ever taking a dt larger than
// tickDelta.
func (d *Driver) Run(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.startedAt = time.Now()
	d.mu.Unlock()

	ticker := time.NewTicker(time.Duration(d.tickDelta * float64(time.Second)))
	defer ticker.Stop()

	last := time.Now()
	var accumulator float64

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return
		case now := <-ticker.C:
			frameDt := now.Sub(last).Seconds()
			last = now
			accumulator += frameDt
			for accumulator >= d.tickDelta {
				d.step()
				accumulator -= d.tickDelta
			}
		}
	}
}

// Step runs exactly one simulation step. Exported for tests, which drive
// the loop deterministically rather than off a wall-clock ticker.
func (d *Driver) Step() {
	d.step()
}

func (d *Driver) step() {
	stepStart := time.Now()
	defer func() { observability.RecordTick(time.Since(stepStart)) }()

	if d.onPreStep != nil {
		d.onPreStep()
	}

	d.mu.Lock()
	d.currentTick++
	tick := d.currentTick
	pending := d.pending
	d.pending = make(map[string][]InputCommand)
	d.mu.Unlock()

	entities := d.world.All()

	// Step 1: apply the most recent queued input per connected player.
	for _, e := range entities {
		if e.Type != protocol.EntityPlayer || e.OwnerPeer == "" {
			continue
		}
		cmds, ok := pending[e.OwnerPeer]
		if !ok || len(cmds) == 0 {
			continue
		}
		best := cmds[0]
		for _, c := range cmds[1:] {
			if c.Tick > best.Tick {
				best = c
			}
		}
		dir := normalize(best.Direction)
		e.Velocity = protocol.Vec2{X: dir.X * d.cfg.PlayerSpeed, Y: dir.Y * d.cfg.PlayerSpeed}
	}

	// Step 2: delegate position/collision resolution to the physics engine.
	d.physics.Resolve(entities, d.tickDelta)

	// Step 3: re-bucket any entity whose chunk changed.
	for _, e := range entities {
		d.world.SyncChunk(e.ID)
	}

	// Step 4: drive scripted moving obstacles.
	for _, e := range entities {
		if e.Type == protocol.EntityMovingObstacle {
			d.world.DriveScriptedMotion(e.ID, d.tickDelta)
		}
	}
	// A second physics pass is not run this tick: scripted velocities take
	// effect starting next step, matching how player input is applied one
	// step before its resulting position is visible.

	// Step 5: record lag-compensation history.
	if d.lagComp != nil {
		d.lagComp.Record(tick, entities)
	}

	// Step 6: trigger the snapshot phase on the configured cadence.
	ticksPerSnapshot := uint64(d.cfg.TickRate / d.cfg.SnapshotRate)
	if ticksPerSnapshot > 0 && tick%ticksPerSnapshot == 0 && d.onSnapshotTick != nil {
		d.onSnapshotTick(tick)
	}
}

// normalize returns v scaled to unit length, or the zero vector if v is
// degenerate. Also the defensive half of spec.md §4.5's "malicious
// magnitudes MUST NOT propagate to velocity": even if ServerProtocol's
// own validation were bypassed, this guarantees the simulation never
// multiplies PlayerSpeed by anything other than a unit vector.
func normalize(v protocol.Vec2) protocol.Vec2 {
	lenSq := v.X*v.X + v.Y*v.Y
	if lenSq < 1e-12 {
		return protocol.Vec2{}
	}
	invLen := 1.0 / math.Sqrt(lenSq)
	return protocol.Vec2{X: v.X * invLen, Y: v.Y * invLen}
}
