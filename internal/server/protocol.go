package server

import (
	"sync"
	"time"

	"duelnet/internal/observability"
	"duelnet/internal/protocol"
	"duelnet/internal/simulation"
	"duelnet/internal/world"
)

// peerState is the per-peer bookkeeping spec.md §4.5 calls for:
// next_sequence, last_ack, a bounded snapshot history (the delta-coding
// baseline source), and the highest input tick seen from that peer.
type peerState struct {
	peerID        string
	entityID      uint32
	nextSequence  uint16
	lastAck       uint16
	lastInputTick uint32
	forceKeyframe bool
	history       *protocol.SnapshotHistory
	send          func([]byte)
}

// ServerProtocol is the authoritative per-peer snapshot pipeline: input
// ingestion, keyframe-on-demand, clock sync replies, and the per-tick
// snapshot build spec.md §4.5 describes. Grounded on internal/game/
// engine.go's per-tick player-list orchestration, narrowed from "mutate
// and broadcast game state" to "select_visible + delta-encode per peer".
type ServerProtocol struct {
	mu    sync.Mutex
	peers map[string]*peerState

	world       *world.World
	interest    *world.InterestManager
	driver      *simulation.Driver
	historySize int
	rateLimiter *InputRateLimiter
	epoch       time.Time
	inputs      *inputQueue
}

// NewServerProtocol wires a ServerProtocol over the given world, interest
// manager, and simulation driver. It registers a pre-step hook on driver
// that drains the transport-facing input queue into the driver exactly
// once per tick, so many concurrent websocket read-pumps never need to
// touch the driver's internal state directly.
func NewServerProtocol(w *world.World, interest *world.InterestManager, driver *simulation.Driver, historySize int, rateLimiter *InputRateLimiter) *ServerProtocol {
	sp := &ServerProtocol{
		peers:       make(map[string]*peerState),
		world:       w,
		interest:    interest,
		driver:      driver,
		historySize: historySize,
		rateLimiter: rateLimiter,
		epoch:       time.Now(),
		inputs:      newInputQueue(256),
	}
	driver.OnPreStep(sp.drainInputs)
	return sp
}

func (sp *ServerProtocol) drainInputs() {
	for _, ev := range sp.inputs.Drain() {
		sp.driver.EnqueueInput(ev.peerID, ev.cmd)
	}
}

// Connect spawns a player entity for peerID and registers its per-peer
// state. send delivers server -> client bytes for this peer (the
// transport's per-connection write path).
func (sp *ServerProtocol) Connect(peerID string, spawnPos protocol.Vec2, send func([]byte)) *protocol.Entity {
	e := sp.world.SpawnPlayer(peerID, spawnPos)

	sp.mu.Lock()
	sp.peers[peerID] = &peerState{
		peerID:   peerID,
		entityID: e.ID,
		history:  protocol.NewSnapshotHistory(sp.historySize),
		send:     send,
	}
	sp.mu.Unlock()

	return e
}

// Disconnect removes a peer's entity, interest-manager hysteresis state,
// and rate-limit bucket (spec.md §4.5 "disconnect cleanup").
func (sp *ServerProtocol) Disconnect(peerID string) {
	sp.mu.Lock()
	p, ok := sp.peers[peerID]
	delete(sp.peers, peerID)
	sp.mu.Unlock()
	if !ok {
		return
	}

	sp.world.Despawn(p.entityID)
	sp.interest.RemovePeer(peerID)
	sp.rateLimiter.Remove(peerID)
}

// HandleMessage dispatches one client -> server binary message. now is
// the time the message was received, used only for the clock-sync
// timestamps.
func (sp *ServerProtocol) HandleMessage(peerID string, raw []byte, now time.Time) {
	if len(raw) == 0 {
		return
	}
	switch raw[0] {
	case msgInput:
		if sp.rateLimiter != nil && !sp.rateLimiter.Allow(peerID) {
			return
		}
		in, err := decodeClientInput(raw)
		if err != nil {
			return
		}
		sp.handleInput(peerID, in)
	case msgRequestFullSnapshot:
		observability.IncKeyframeRequest()
		sp.mu.Lock()
		if p, ok := sp.peers[peerID]; ok {
			p.forceKeyframe = true
		}
		sp.mu.Unlock()
	case msgClockSyncPing:
		ping, err := decodeClockSyncPing(raw)
		if err != nil {
			return
		}
		sp.handleClockSync(peerID, ping, now)
	}
}

func (sp *ServerProtocol) handleInput(peerID string, in clientInput) {
	sp.mu.Lock()
	p, ok := sp.peers[peerID]
	if !ok {
		sp.mu.Unlock()
		return
	}
	if protocol.SequenceAfter(in.Ack, p.lastAck) {
		p.lastAck = in.Ack
	}
	if in.Tick > p.lastInputTick {
		p.lastInputTick = in.Tick
	}
	sp.mu.Unlock()

	// Direction is normalized defensively again inside simulation.Driver's
	// step; a client could send any magnitude here and it still cannot
	// propagate to velocity faster than PLAYER_SPEED. Pushed onto the
	// lock-free MPSC queue rather than handed to the driver directly,
	// since HandleMessage runs concurrently on each connection's
	// read-pump goroutine.
	dir := protocol.Vec2{X: float64(in.DirX), Y: float64(in.DirY)}
	sp.inputs.TryPush(inputEvent{peerID: peerID, cmd: simulation.InputCommand{Tick: in.Tick, Direction: dir}})
}

func (sp *ServerProtocol) handleClockSync(peerID string, ping clockSyncPing, now time.Time) {
	sp.mu.Lock()
	p, ok := sp.peers[peerID]
	sp.mu.Unlock()
	if !ok {
		return
	}

	serverReceiveMs := uint32(now.Sub(sp.epoch).Milliseconds())
	pong := clockSyncPong{
		ClientSendTimeMs:    ping.ClientSendTimeMs,
		ServerReceiveTimeMs: serverReceiveMs,
		ServerSendTimeMs:    uint32(time.Since(sp.epoch).Milliseconds()),
	}
	if p.send != nil {
		p.send(encodeClockSyncPong(pong))
	}
}

// BuildAndSendSnapshots runs the per-peer snapshot build of spec.md §4.5
// for every connected peer. Wired as the simulation Driver's
// OnSnapshotTick callback.
func (sp *ServerProtocol) BuildAndSendSnapshots(timestampMs uint32) {
	sp.mu.Lock()
	peers := make([]*peerState, 0, len(sp.peers))
	for _, p := range sp.peers {
		peers = append(peers, p)
	}
	sp.mu.Unlock()

	entities := sp.world.AsMap()
	for _, p := range peers {
		sp.buildAndSendOne(p, entities, timestampMs)
	}
}

func (sp *ServerProtocol) buildAndSendOne(p *peerState, entities map[uint32]*protocol.Entity, timestampMs uint32) {
	sp.mu.Lock()
	p.nextSequence++
	seq := p.nextSequence
	lastAck := p.lastAck
	forceKeyframe := p.forceKeyframe
	p.forceKeyframe = false
	lastInputTick := p.lastInputTick
	entityID := p.entityID
	peerID := p.peerID
	history := p.history
	send := p.send
	sp.mu.Unlock()

	// Step 2: baseline selection. An evicted or never-sent ack falls back
	// to None, which forces a full (keyframe) encoding for this peer —
	// the canonical "refuse stale baseline" recovery policy.
	var baseline *protocol.Snapshot
	if !forceKeyframe && lastAck > 0 {
		if b, ok := history.Get(lastAck); ok {
			baseline = b
		}
	}

	var center protocol.Vec2
	if player, ok := sp.world.Get(entityID); ok {
		center = player.Position
	}

	visibleIDs := sp.interest.SelectVisible(peerID, entityID, center, entities)
	states := make([]protocol.SnapshotEntry, 0, len(visibleIDs))
	for _, id := range visibleIDs {
		if e, ok := entities[id]; ok {
			states = append(states, protocol.SnapshotEntry{ID: id, State: e.State()})
		}
	}

	snap := &protocol.Snapshot{
		Sequence:               seq,
		TimestampMs:            timestampMs,
		PlayerEntityID:         entityID,
		LastProcessedInputTick: lastInputTick,
		States:                 states,
	}
	if baseline != nil {
		snap.BaselineSequence = baseline.Sequence
	}

	encodeStart := time.Now()
	encoded := protocol.Encode(snap, baseline)
	// spec.md §6: the server MUST reject building a snapshot whose encoded
	// size would exceed MaxPayloadBytes. While the encoded frame is over
	// budget, the lowest-priority entity (farthest from the peer's view
	// center) is dropped and the snapshot re-encoded, so an oversized
	// frame is never sent. The player's own entity is never dropped.
	for len(encoded) > protocol.MaxPayloadBytes && len(snap.States) > 1 {
		snap.States = dropFarthestEntity(snap.States, entityID, center)
		encoded = protocol.Encode(snap, baseline)
	}
	observability.RecordSnapshotEncode(time.Since(encodeStart), len(encoded))
	history.Store(snap)

	if send != nil {
		send(wrapSnapshot(encoded))
	}
}

// dropFarthestEntity removes the non-player entity farthest from center
// from states, preserving the remaining entries' ascending-id order.
func dropFarthestEntity(states []protocol.SnapshotEntry, playerEntityID uint32, center protocol.Vec2) []protocol.SnapshotEntry {
	worst := -1
	worstDistSq := -1.0
	for i, s := range states {
		if s.ID == playerEntityID {
			continue
		}
		dx := s.State.Position.X - center.X
		dy := s.State.Position.Y - center.Y
		distSq := dx*dx + dy*dy
		if distSq > worstDistSq {
			worstDistSq = distSq
			worst = i
		}
	}
	if worst < 0 {
		return states
	}
	return append(states[:worst], states[worst+1:]...)
}

// PeerCount reports the number of connected peers.
func (sp *ServerProtocol) PeerCount() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.peers)
}
