package server

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Message type tags for both directions of the binary channel. The
// client -> server direction carries input, request_full_snapshot and
// clock sync pings; the server -> client direction carries two message
// shapes (an encoded protocol.Snapshot, tagged msgSnapshot, and the clock
// sync reply), so both directions share one small dispatch byte rather
// than needing a richer envelope.
const (
	msgInput               byte = 0x01
	msgRequestFullSnapshot byte = 0x02
	msgClockSyncPing       byte = 0x03
	msgClockSyncPong       byte = 0x04
	msgSnapshot            byte = 0x05
)

var errShortMessage = errors.New("server: message too short for its type")

// clientInput is the wire shape of an input RPC (spec.md §4.5):
// (peer, direction, tick, render_time, ack). peer is implicit in the
// connection this message arrived on.
type clientInput struct {
	Ack          uint16
	Tick         uint32
	DirX, DirY   float32
	RenderTimeMs uint32
}

func encodeClientInput(in clientInput) []byte {
	buf := make([]byte, 1+2+4+4+4+4)
	buf[0] = msgInput
	binary.BigEndian.PutUint16(buf[1:], in.Ack)
	binary.BigEndian.PutUint32(buf[3:], in.Tick)
	binary.BigEndian.PutUint32(buf[7:], math.Float32bits(in.DirX))
	binary.BigEndian.PutUint32(buf[11:], math.Float32bits(in.DirY))
	binary.BigEndian.PutUint32(buf[15:], in.RenderTimeMs)
	return buf
}

func decodeClientInput(b []byte) (clientInput, error) {
	if len(b) < 19 {
		return clientInput{}, errShortMessage
	}
	return clientInput{
		Ack:          binary.BigEndian.Uint16(b[1:]),
		Tick:         binary.BigEndian.Uint32(b[3:]),
		DirX:         math.Float32frombits(binary.BigEndian.Uint32(b[7:])),
		DirY:         math.Float32frombits(binary.BigEndian.Uint32(b[11:])),
		RenderTimeMs: binary.BigEndian.Uint32(b[15:]),
	}, nil
}

func encodeRequestFullSnapshot() []byte {
	return []byte{msgRequestFullSnapshot}
}

type clockSyncPing struct {
	ClientSendTimeMs uint32
}

func decodeClockSyncPing(b []byte) (clockSyncPing, error) {
	if len(b) < 5 {
		return clockSyncPing{}, errShortMessage
	}
	return clockSyncPing{ClientSendTimeMs: binary.BigEndian.Uint32(b[1:])}, nil
}

type clockSyncPong struct {
	ClientSendTimeMs    uint32
	ServerReceiveTimeMs uint32
	ServerSendTimeMs    uint32
}

func encodeClockSyncPong(p clockSyncPong) []byte {
	buf := make([]byte, 1+4+4+4)
	buf[0] = msgClockSyncPong
	binary.BigEndian.PutUint32(buf[1:], p.ClientSendTimeMs)
	binary.BigEndian.PutUint32(buf[5:], p.ServerReceiveTimeMs)
	binary.BigEndian.PutUint32(buf[9:], p.ServerSendTimeMs)
	return buf
}

func decodeClockSyncPong(b []byte) (clockSyncPong, error) {
	if len(b) < 13 {
		return clockSyncPong{}, errShortMessage
	}
	return clockSyncPong{
		ClientSendTimeMs:    binary.BigEndian.Uint32(b[1:]),
		ServerReceiveTimeMs: binary.BigEndian.Uint32(b[5:]),
		ServerSendTimeMs:    binary.BigEndian.Uint32(b[9:]),
	}, nil
}

// wrapSnapshot prefixes an encoded protocol.Snapshot with msgSnapshot so
// the client's single read loop can dispatch on the first byte like
// every other message type, instead of special-casing "untagged".
func wrapSnapshot(encoded []byte) []byte {
	out := make([]byte, 1+len(encoded))
	out[0] = msgSnapshot
	copy(out[1:], encoded)
	return out
}
