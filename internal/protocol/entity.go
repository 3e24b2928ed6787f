package protocol

// EntityType tags the variant of an Entity. Encoded in EntityTypeBits (4)
// bits on the wire; the tagged-variant approach replaces the source's
// dynamic typing per the design notes.
type EntityType uint8

const (
	EntityPlayer EntityType = iota
	EntityNPC
	EntityMovingObstacle
)

// Vec2 is a plain 2D float vector. No methods beyond what the protocol
// and interpolation math need; richer vector algebra belongs to the
// external physics collaborator, not this package.
type Vec2 struct {
	X, Y float64
}

// EntityState is the quantizable, wire-visible portion of an entity: the
// fields that travel inside a Snapshot. Position/velocity stay in full
// float64 precision in memory — quantization only happens at encode time,
// and decode always reconstructs float64 from the wire code.
type EntityState struct {
	Position   Vec2
	Velocity   Vec2
	SpriteFrame uint8
	StateFlags  uint8
	EntityType  EntityType
}

// StatesEqual is the server's changed-detection predicate: positions and
// velocities within tolerance, discrete fields exactly equal.
func StatesEqual(a, b EntityState) bool {
	const posTol = 0.01
	const velTol = 0.01
	return absf(a.Position.X-b.Position.X) <= posTol &&
		absf(a.Position.Y-b.Position.Y) <= posTol &&
		absf(a.Velocity.X-b.Velocity.X) <= velTol &&
		absf(a.Velocity.Y-b.Velocity.Y) <= velTol &&
		a.SpriteFrame == b.SpriteFrame &&
		a.StateFlags == b.StateFlags &&
		a.EntityType == b.EntityType
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Entity is the authoritative, server-side representation. ChunkCoord is
// derived from Position, not stored independently of it, so the
// ChunkIndex-consistency invariant reduces to "recomputed every time
// Position changes."
type Entity struct {
	ID         uint32
	Type       EntityType
	Position   Vec2
	Velocity   Vec2
	SpriteFrame uint8
	StateFlags  uint8
	OwnerPeer   string // non-empty only for Player entities

	// ScriptedState drives MovingObstacle ping-pong behavior; unused by
	// Player and NPC entities.
	ScriptedState ScriptedMotion
}

// ScriptedMotion holds the two-state ping-pong machine for a scripted
// MovingObstacle: it travels between Start and End at Speed, flipping
// direction when within 10 world units of its current target.
type ScriptedMotion struct {
	Start, End Vec2
	Speed      float64
	GoingToEnd bool
}

// State extracts the wire-visible EntityState from an Entity.
func (e *Entity) State() EntityState {
	return EntityState{
		Position:    e.Position,
		Velocity:    e.Velocity,
		SpriteFrame: e.SpriteFrame,
		StateFlags:  e.StateFlags,
		EntityType:  e.Type,
	}
}
