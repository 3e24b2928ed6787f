package protocol

// MaxPayloadBytes is the MTU budget a single encoded snapshot must fit
// within. Encode itself does not drop entities and does not check this
// budget; ServerProtocol compares the encoded length against it and drops
// entities and re-encodes until the result fits.
const MaxPayloadBytes = 1400

// headerBits is the fixed 144-bit prefix: 16+32+16+16+32+32.
const headerBits = 16 + 32 + 16 + 16 + 32 + 32

// Header is the fixed-size prefix decoded by PeekHeader, enough for a
// client to choose the correct baseline before attempting a full Decode.
type Header struct {
	Sequence         uint16
	TimestampMs      uint32
	BaselineSequence uint16
}

// PeekHeader decodes only the fixed header prefix of an encoded snapshot
// without consuming or mutating any caller state. Used by the client to
// select the right SnapshotHistory baseline entry before calling Decode.
func PeekHeader(data []byte) (Header, error) {
	r := NewBitReader(data)
	seq, err := r.ReadBits(16)
	if err != nil {
		return Header{}, ErrBufferUnderrun
	}
	ts, err := r.ReadBits(32)
	if err != nil {
		return Header{}, ErrBufferUnderrun
	}
	baseSeq, err := r.ReadBits(16)
	if err != nil {
		return Header{}, ErrBufferUnderrun
	}
	return Header{
		Sequence:         uint16(seq),
		TimestampMs:      uint32(ts),
		BaselineSequence: uint16(baseSeq),
	}, nil
}

// Encode serializes snap, delta-compressing against baseline when
// non-nil. baseline should be the snapshot the receiving peer is known
// (via ack) to hold; pass nil to force a full keyframe encoding.
//
// Per-entity body: id_delta (varint) then, only if baseline is non-nil
// AND baseline contains this id, a single `changed` bit — when that bit
// is 0 nothing further is written for the entity. Every other case (new
// id, absent baseline, or changed=1) writes the full quantized state.
// The reader MUST evaluate that same condition in the same order; this
// symmetry is the single most load-bearing invariant in the codec.
func Encode(snap *Snapshot, baseline *Snapshot) []byte {
	w := NewBitWriter(headerBits/8 + len(snap.States)*6)

	w.WriteBits(uint64(snap.Sequence), 16)
	w.WriteBits(uint64(snap.TimestampMs), 32)
	w.WriteBits(uint64(snap.BaselineSequence), 16)
	w.WriteBits(uint64(len(snap.States)), 16)
	w.WriteBits(uint64(snap.PlayerEntityID), 32)
	w.WriteBits(uint64(snap.LastProcessedInputTick), 32)

	var prevID uint32
	for _, entry := range snap.States {
		WriteVarint(w, entry.ID-prevID)
		prevID = entry.ID

		if baseline != nil {
			if baseState, ok := baseline.Lookup(entry.ID); ok {
				changed := !StatesEqual(entry.State, baseState)
				w.WriteBit(changed)
				if !changed {
					continue
				}
			}
		}
		writeFullState(w, entry.State)
	}

	w.Flush()
	return w.Bytes()
}

func writeFullState(w *BitWriter, s EntityState) {
	w.WriteBits(uint64(QuantizePosition(s.Position.X)), PositionBits)
	w.WriteBits(uint64(QuantizePosition(s.Position.Y)), PositionBits)
	w.WriteBits(uint64(QuantizeVelocity(s.Velocity.X)), VelocityBits)
	w.WriteBits(uint64(QuantizeVelocity(s.Velocity.Y)), VelocityBits)
	w.WriteBits(uint64(s.SpriteFrame), SpriteBits)
	w.WriteBits(uint64(s.StateFlags), StateBits)
	w.WriteBits(uint64(s.EntityType), EntityTypeBits)
}

func readFullState(r *BitReader) (EntityState, error) {
	px, err := r.ReadBits(PositionBits)
	if err != nil {
		return EntityState{}, ErrBufferUnderrun
	}
	py, err := r.ReadBits(PositionBits)
	if err != nil {
		return EntityState{}, ErrBufferUnderrun
	}
	vx, err := r.ReadBits(VelocityBits)
	if err != nil {
		return EntityState{}, ErrBufferUnderrun
	}
	vy, err := r.ReadBits(VelocityBits)
	if err != nil {
		return EntityState{}, ErrBufferUnderrun
	}
	frame, err := r.ReadBits(SpriteBits)
	if err != nil {
		return EntityState{}, ErrBufferUnderrun
	}
	flags, err := r.ReadBits(StateBits)
	if err != nil {
		return EntityState{}, ErrBufferUnderrun
	}
	etype, err := r.ReadBits(EntityTypeBits)
	if err != nil {
		return EntityState{}, ErrBufferUnderrun
	}
	return EntityState{
		Position:    Vec2{X: DequantizePosition(uint32(px)), Y: DequantizePosition(uint32(py))},
		Velocity:    Vec2{X: DequantizeVelocity(uint32(vx)), Y: DequantizeVelocity(uint32(vy))},
		SpriteFrame: uint8(frame),
		StateFlags:  uint8(flags),
		EntityType:  EntityType(etype),
	}, nil
}

// Decode reverses Encode. baseline must be the exact snapshot the writer
// used (matched by sequence) whenever the decoded header's
// BaselineSequence is non-zero; otherwise ErrBaselineMismatch is
// returned and the caller must request a keyframe. This is the canonical
// "refuse" recovery policy — decode never partially applies a snapshot,
// it either succeeds completely or returns an error with no state
// mutation performed by the caller.
func Decode(data []byte, baseline *Snapshot) (*Snapshot, error) {
	r := NewBitReader(data)

	seq, err := r.ReadBits(16)
	if err != nil {
		return nil, ErrBufferUnderrun
	}
	ts, err := r.ReadBits(32)
	if err != nil {
		return nil, ErrBufferUnderrun
	}
	baseSeq, err := r.ReadBits(16)
	if err != nil {
		return nil, ErrBufferUnderrun
	}
	count, err := r.ReadBits(16)
	if err != nil {
		return nil, ErrBufferUnderrun
	}
	playerID, err := r.ReadBits(32)
	if err != nil {
		return nil, ErrBufferUnderrun
	}
	lastTick, err := r.ReadBits(32)
	if err != nil {
		return nil, ErrBufferUnderrun
	}

	if baseSeq > 0 {
		if baseline == nil || baseline.Sequence != uint16(baseSeq) {
			return nil, ErrBaselineMismatch
		}
	}

	snap := &Snapshot{
		Sequence:               uint16(seq),
		TimestampMs:            uint32(ts),
		BaselineSequence:       uint16(baseSeq),
		PlayerEntityID:         uint32(playerID),
		LastProcessedInputTick: uint32(lastTick),
		States:                 make([]SnapshotEntry, 0, count),
	}

	var prevID uint32
	for i := uint64(0); i < count; i++ {
		delta, err := ReadVarint(r)
		if err != nil {
			return nil, err
		}
		id := prevID + delta
		prevID = id

		if baseSeq > 0 {
			if baseState, ok := baseline.Lookup(id); ok {
				changed, err := r.ReadBit()
				if err != nil {
					return nil, ErrBufferUnderrun
				}
				if !changed {
					snap.States = append(snap.States, SnapshotEntry{ID: id, State: baseState})
					continue
				}
			}
		}

		state, err := readFullState(r)
		if err != nil {
			return nil, err
		}
		snap.States = append(snap.States, SnapshotEntry{ID: id, State: state})
	}

	return snap, nil
}
