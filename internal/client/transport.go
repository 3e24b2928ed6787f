package client

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"duelnet/internal/observability"
	"duelnet/internal/protocol"
)

// sendBufferSize bounds the outbound channel so a stalled connection
// drops input rather than piling up unbounded memory, the same
// backpressure-by-drop policy the server's transport applies to
// outbound snapshots.
const sendBufferSize = 32

// Conn is the client side of the binary websocket protocol. Grounded on
// the teacher's chat.Listener ("Connect dials, Run reads in a loop,
// done channel signals shutdown"), narrowed to this protocol's single
// binary channel in both directions instead of Pusher's JSON envelope.
type Conn struct {
	ws      *websocket.Conn
	sendCh  chan []byte
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// Dial connects to the server's /ws endpoint. origin is sent as the
// Origin header, matching what the server's CheckOrigin allowlist
// expects from a same-site client.
func Dial(url, origin string) (*Conn, error) {
	header := map[string][]string{}
	if origin != "" {
		header["Origin"] = []string{origin}
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	c := &Conn{ws: ws, sendCh: make(chan []byte, sendBufferSize), done: make(chan struct{})}
	go c.writePump()
	return c, nil
}

// Send enqueues a binary message. Drops silently if the outbound buffer
// is full rather than blocking the caller's simulation loop.
func (c *Conn) Send(msg []byte) {
	select {
	case c.sendCh <- msg:
	default:
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case msg, ok := <-c.sendCh:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Run blocks reading incoming messages until the connection closes or
// ctx-like done signal fires, dispatching each by its tag: snapshots go
// into buf (decoded against buf's own history for delta baselines),
// clock sync pongs go to onPong.
func (c *Conn) Run(buf *SnapshotBuffer, onPong func(ClockSyncPong)) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case msgSnapshot:
			snap, err := decodeSnapshot(data, buf)
			if err != nil {
				// A mismatched baseline means our history evicted the
				// snapshot the server delta-coded against; ask for a
				// fresh keyframe rather than silently rendering garbage.
				if err == protocol.ErrBaselineMismatch {
					observability.IncBaselineMismatch()
				}
				log.Printf("client: snapshot decode failed, requesting full resync: %v", err)
				c.Send(EncodeRequestFullSnapshot())
				continue
			}
			buf.Insert(snap)
		case msgClockSyncPong:
			pong, err := decodeClockSyncPong(data)
			if err != nil {
				continue
			}
			if onPong != nil {
				onPong(pong)
			}
		default:
			log.Printf("client: %v", errUnknownMessage)
		}
	}
}

// Close shuts the connection down.
func (c *Conn) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.ws.Close()
}
