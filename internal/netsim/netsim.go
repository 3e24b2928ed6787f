// Package netsim is a test-only network condition shim: a Pipe applies
// loss, delay, jitter, bandwidth and duplication to byte payloads
// without a real socket. No other package in this module wires it
// between internal/server/transport.go and internal/client/transport.go;
// its own tests are its only callers. Grounded on the teacher's internal/game/engine.go seeding a
// single rand.Source per engine instance (`rng: rand.New(rand.NewSource(seed))`)
// rather than reaching for the global rand source, so a scenario replays
// identically given the same seed.
package netsim

import (
	"math/rand"
	"time"
)

// Condition holds the five test-only knobs spec.md §6 names.
type Condition struct {
	PacketLoss    float64 // probability in [0,1] a send is dropped entirely (1 drops all)
	LagMs         int     // fixed one-way delay applied to every delivered message
	JitterMs      int     // additional uniform-random delay in [0, JitterMs)
	BandwidthKbps int     // 0 disables the transmission-time simulation
	DuplicateRate float64 // probability in [0,1] a delivered message is also duplicated (1 duplicates all)
}

// NoLoss is the zero-value condition: instant, lossless, unduplicated
// delivery. Useful as the baseline scenario in tests that only want to
// flip on one knob at a time.
var NoLoss = Condition{}

// Pipe simulates one direction of an unreliable channel: every Send
// either gets dropped, delayed by lag+jitter+transmission-time, or
// (rarely) delivered twice. deliver is called from whatever goroutine
// the simulated delay happens to land on — time.AfterFunc's own
// goroutine for delayed sends, the caller's goroutine for zero-delay
// ones — callers needing a single delivery goroutine must serialize in
// their own deliver callback.
type Pipe struct {
	cond    Condition
	rng     *rand.Rand
	deliver func(payload []byte)
}

// NewPipe creates a Pipe applying cond to every Send, using a
// rand.Source seeded deterministically from seed so two runs with the
// same seed reproduce the same drop/delay/duplicate decisions.
func NewPipe(cond Condition, seed int64, deliver func(payload []byte)) *Pipe {
	return &Pipe{
		cond:    cond,
		rng:     rand.New(rand.NewSource(seed)),
		deliver: deliver,
	}
}

// Send simulates transmitting payload across the link.
func (p *Pipe) Send(payload []byte) {
	if p.rng.Float64() < p.cond.PacketLoss {
		return
	}

	delay := p.transitDelay(len(payload))
	p.scheduleDelivery(payload, delay)

	if p.rng.Float64() < p.cond.DuplicateRate {
		p.scheduleDelivery(payload, delay)
	}
}

func (p *Pipe) transitDelay(payloadLen int) time.Duration {
	delayMs := float64(p.cond.LagMs)
	if p.cond.JitterMs > 0 {
		delayMs += float64(p.rng.Intn(p.cond.JitterMs))
	}
	if p.cond.BandwidthKbps > 0 {
		bytesPerMs := float64(p.cond.BandwidthKbps) * 1000 / 8 / 1000
		delayMs += float64(payloadLen) / bytesPerMs
	}
	return time.Duration(delayMs * float64(time.Millisecond))
}

func (p *Pipe) scheduleDelivery(payload []byte, delay time.Duration) {
	if delay <= 0 {
		p.deliver(payload)
		return
	}
	time.AfterFunc(delay, func() { p.deliver(payload) })
}
