package server

import (
	"runtime"
	"sync/atomic"

	"duelnet/internal/simulation"
)

// cacheLineSize is the typical CPU cache line size (64 bytes on x86-64).
const cacheLineSize = 64

// padding prevents false sharing between adjacent atomic fields that are
// written by different goroutines (many websocket read-pumps vs. the one
// simulation tick goroutine).
type padding [cacheLineSize]byte

// inputEvent pairs a peer id with the command it sent. This is what
// crosses from the many transport read-pump goroutines into the single
// simulation tick goroutine.
type inputEvent struct {
	peerID string
	cmd    simulation.InputCommand
}

// inputQueue is a lock-free MPSC ring buffer: many websocket read-pumps
// push concurrently, the simulation tick goroutine is the sole consumer.
// Grounded on internal/game/spatial/lockfree_queue.go's LockFreeQueue,
// narrowed to the one element type ServerProtocol needs and renamed out
// of its generic form since nothing else in this module reuses it.
type inputQueue struct {
	_pad0 padding
	head  uint64
	_pad1 padding
	tail  uint64
	_pad2 padding
	mask  uint64
	data  []inputEvent
}

// newInputQueue creates a queue of the given capacity, rounded up to the
// next power of two.
func newInputQueue(capacity int) *inputQueue {
	cap := 1
	for cap < capacity {
		cap <<= 1
	}
	return &inputQueue{
		mask: uint64(cap - 1),
		data: make([]inputEvent, cap),
	}
}

// TryPush adds an event without blocking. Returns false if the queue is
// full, in which case the caller drops the input rather than stalling a
// websocket read-pump goroutine on the simulation tick.
func (q *inputQueue) TryPush(ev inputEvent) bool {
	for {
		head := atomic.LoadUint64(&q.head)
		tail := atomic.LoadUint64(&q.tail)
		if head-tail > q.mask {
			return false
		}
		if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
			q.data[head&q.mask] = ev
			return true
		}
		runtime.Gosched()
	}
}

// Drain pops every currently available event (single-consumer only).
func (q *inputQueue) Drain() []inputEvent {
	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)
	if tail >= head {
		return nil
	}
	out := make([]inputEvent, 0, head-tail)
	for tail < head {
		out = append(out, q.data[tail&q.mask])
		tail++
	}
	atomic.StoreUint64(&q.tail, tail)
	return out
}
