package client

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"duelnet/internal/protocol"
)

// Message type tags, mirrored from the server's internal/server/wire.go
// dispatch byte. Kept as a second, independent definition rather than a
// shared exported package: the two sides never need to import each
// other, and a wire tag is part of the protocol contract, not shared
// Go state.
const (
	msgInput               byte = 0x01
	msgRequestFullSnapshot byte = 0x02
	msgClockSyncPing       byte = 0x03
	msgClockSyncPong       byte = 0x04
	msgSnapshot            byte = 0x05
)

var errShortMessage = errors.New("client: message too short for its type")
var errUnknownMessage = errors.New("client: unrecognized message tag")

// EncodeInput builds the client -> server input RPC (spec.md §4.5 and
// §4.9's per-tick send): tick, normalized direction, render time, and
// the last received snapshot sequence used as an input-side ack.
func EncodeInput(lastReceivedSequence uint16, tick uint32, direction protocol.Vec2, renderTimeMs uint32) []byte {
	buf := make([]byte, 1+2+4+4+4+4)
	buf[0] = msgInput
	binary.BigEndian.PutUint16(buf[1:], lastReceivedSequence)
	binary.BigEndian.PutUint32(buf[3:], tick)
	binary.BigEndian.PutUint32(buf[7:], math.Float32bits(float32(direction.X)))
	binary.BigEndian.PutUint32(buf[11:], math.Float32bits(float32(direction.Y)))
	binary.BigEndian.PutUint32(buf[15:], renderTimeMs)
	return buf
}

// EncodeRequestFullSnapshot builds the RPC that forces the server to
// ignore this peer's acked baseline and send a full keyframe next.
func EncodeRequestFullSnapshot() []byte {
	return []byte{msgRequestFullSnapshot}
}

// EncodeClockSyncPing builds the spec.md §4.7 clock sync ping, carrying
// only the client's own send-time.
func EncodeClockSyncPing(clientSendTimeMs uint32) []byte {
	buf := make([]byte, 1+4)
	buf[0] = msgClockSyncPing
	binary.BigEndian.PutUint32(buf[1:], clientSendTimeMs)
	return buf
}

// ClockSyncPong is the decoded reply to a clock sync ping.
type ClockSyncPong struct {
	ClientSendTimeMs    uint32
	ServerReceiveTimeMs uint32
	ServerSendTimeMs    uint32
}

func decodeClockSyncPong(b []byte) (ClockSyncPong, error) {
	if len(b) < 13 {
		return ClockSyncPong{}, errShortMessage
	}
	return ClockSyncPong{
		ClientSendTimeMs:    binary.BigEndian.Uint32(b[1:]),
		ServerReceiveTimeMs: binary.BigEndian.Uint32(b[5:]),
		ServerSendTimeMs:    binary.BigEndian.Uint32(b[9:]),
	}, nil
}

// decodeSnapshot strips the msgSnapshot tag and delegates to
// protocol.Decode, resolving the baseline from hist by the header's
// BaselineSequence (0 means a full keyframe, no baseline needed).
func decodeSnapshot(b []byte, hist *SnapshotBuffer) (*protocol.Snapshot, error) {
	if len(b) < 1 {
		return nil, errShortMessage
	}
	payload := b[1:]
	header, err := protocol.PeekHeader(payload)
	if err != nil {
		return nil, err
	}

	var baseline *protocol.Snapshot
	if header.BaselineSequence > 0 {
		b, ok := hist.Get(header.BaselineSequence)
		if !ok {
			return nil, protocol.ErrBaselineMismatch
		}
		baseline = b
	}
	return protocol.Decode(payload, baseline)
}
