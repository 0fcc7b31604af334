// Package transport implements the UDP Peer Transport of spec.md §4.8:
// a pair of peers, each binding a net.PacketConn, that communicate
// through pkg/wire's envelope framing and drive a tick-counted (never
// wall-clock) session state machine. Grounded on the teacher's
// pkg/server.Server connection lifecycle (config struct, mutex-guarded
// state, accept loop) in pkg/server/server.go, generalized from a
// TCP accept loop into a two-peer UDP handshake/heartbeat machine.
package transport

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novaria-game/core/pkg/wire"
)

// SessionState is the tagged variant of spec.md §3.
type SessionState uint8

const (
	Disconnected SessionState = iota
	Connecting
	Connected
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Tuning constants, defaults per spec.md §4.8/§4.9.
const (
	ConnectTimeoutTicks          uint64 = 300
	MaxConnectProbeIntervalTicks uint64 = 150
	HeartbeatTimeoutTicks        uint64 = 180
	HeartbeatSendIntervalTicks   uint64 = 60
	MaxPendingCommands                  = 1024
	MaxPendingRemoteChunkPayloads        = 1024
	InitialProbeIntervalTicks    uint64 = 15
)

// Diagnostics mirrors the counter set spec.md §4.8 requires "at least".
type Diagnostics struct {
	SessionState                    SessionState
	LastTransitionReason            string
	LastHeartbeatTick               uint64
	SessionTransitionCount          uint64
	ConnectedTransitionCount        uint64
	ConnectRequestCount             uint64
	ConnectProbeSendCount           uint64
	ConnectProbeSendFailureCount    uint64
	TimeoutDisconnectCount          uint64
	ManualDisconnectCount           uint64
	IgnoredHeartbeatCount           uint64
	IgnoredUnexpectedSenderCount    uint64
	DroppedCommandCount             uint64
	UnsentCommandCount              uint64
	DroppedSnapshotCount            uint64
	UnsentSnapshotCount             uint64
	MalformedDatagramCount          uint64
	LastConnectAttemptID            string
}

// Config configures one endpoint of the peer pair.
type Config struct {
	LocalAddr  string
	RemoteAddr string // empty or port 0 means "adopt on first SYN"
}

// Peer is one UDP endpoint of the two-peer transport.
type Peer struct {
	mu sync.Mutex

	conn       net.PacketConn
	remoteAddr net.Addr
	dynamic    bool // true once remoteAddr has been adopted rather than configured

	state SessionState

	startTick             uint64
	nextProbeTick         uint64
	probeInterval         uint64
	probeScheduled        bool
	handshakeAckReceived  bool
	lastHeartbeatTick     uint64
	lastSentHeartbeatTick uint64

	localCommands  []wire.Envelope
	remoteCommands [][]byte
	remoteChunks   [][]byte

	lastStagedState SessionState
	stateChangedAt  uint64

	diag Diagnostics

	logger *zap.SugaredLogger
}

// NewPeer constructs a peer bound to cfg.LocalAddr. If cfg.RemoteAddr is
// non-empty with a non-zero port it is resolved as the pinned remote;
// otherwise the peer adopts its remote dynamically from the first SYN it
// accepts.
func NewPeer(cfg Config, logger *zap.SugaredLogger) (*Peer, error) {
	conn, err := net.ListenPacket("udp", cfg.LocalAddr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &Peer{conn: conn, state: Disconnected, logger: logger}
	if cfg.RemoteAddr != "" {
		addr, err := net.ResolveUDPAddr("udp", cfg.RemoteAddr)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if addr.Port != 0 {
			p.remoteAddr = addr
		}
	}
	return p, nil
}

// Close releases the underlying socket.
func (p *Peer) Close() error { return p.conn.Close() }

// Listen runs a receive loop on the underlying socket until stop is
// closed, feeding every datagram into ReadInbound. currentTick is
// polled once per datagram so inbound processing uses the same tick
// index the kernel is currently on; the loop uses a short read
// deadline so it notices stop promptly even when idle.
func (p *Peer) Listen(currentTick func() uint64, stop <-chan struct{}) {
	buf := make([]byte, 65535)
	for {
		select {
		case <-stop:
			return
		default:
		}
		p.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := p.conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		p.ReadInbound(currentTick(), addr, raw)
	}
}

// Diagnostics returns a value-typed snapshot of the counters.
func (p *Peer) Diagnostics() Diagnostics {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.diag
	d.SessionState = p.state
	d.LastHeartbeatTick = p.lastHeartbeatTick
	return d
}

func (p *Peer) transition(to SessionState, reason string) {
	if p.state == to {
		return
	}
	p.state = to
	p.diag.LastTransitionReason = reason
	p.diag.SessionTransitionCount++
	if to == Connected {
		p.diag.ConnectedTransitionCount++
	}
}

// RequestConnect begins (or restarts) connection attempts.
func (p *Peer) RequestConnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.diag.ConnectRequestCount++
	if p.state == Disconnected {
		p.diag.LastConnectAttemptID = uuid.NewString()
		p.logger.Infow("connect attempt started", "attempt_id", p.diag.LastConnectAttemptID)
		p.transition(Connecting, "request_connect")
		p.probeScheduled = false
	}
}

// RequestDisconnect tears down an active or in-progress session.
func (p *Peer) RequestDisconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Disconnected {
		return
	}
	p.transition(Disconnected, "request_disconnect")
	p.diag.ManualDisconnectCount++
	p.flushQueuesLocked()
}

func (p *Peer) flushQueuesLocked() {
	p.localCommands = nil
	p.remoteCommands = nil
	p.remoteChunks = nil
	p.handshakeAckReceived = false
	p.probeScheduled = false
}

func (p *Peer) isSelfEndpoint() bool {
	if p.remoteAddr == nil {
		return false
	}
	local := p.conn.LocalAddr().String()
	return local == p.remoteAddr.String()
}

// Tick runs the session state machine for one tick. It does not read the
// socket; inbound datagrams are fed in separately through ReadInbound
// (see Listen).
func (p *Peer) Tick(tickIndex uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Connecting:
		p.tickConnectingLocked(tickIndex)
	case Connected:
		p.tickConnectedLocked(tickIndex)
	}

	if p.state != p.lastStagedState {
		p.lastStagedState = p.state
		p.stateChangedAt = tickIndex
	}
}

func (p *Peer) tickConnectingLocked(tickIndex uint64) {
	if !p.probeScheduled {
		p.startTick = tickIndex
		p.probeInterval = InitialProbeIntervalTicks
		p.sendSYNLocked()
		p.nextProbeTick = tickIndex + p.probeInterval
		p.probeScheduled = true
	} else if tickIndex >= p.nextProbeTick {
		p.sendSYNLocked()
		p.nextProbeTick = tickIndex + p.probeInterval
		p.probeInterval *= 2
		if p.probeInterval > MaxConnectProbeIntervalTicks {
			p.probeInterval = MaxConnectProbeIntervalTicks
		}
	}

	if p.handshakeAckReceived {
		p.transition(Connected, "handshake_ack")
		p.logger.Infow("connect attempt completed", "attempt_id", p.diag.LastConnectAttemptID)
		p.probeInterval = InitialProbeIntervalTicks
		p.lastHeartbeatTick = tickIndex
		p.lastSentHeartbeatTick = tickIndex
		return
	}

	if tickIndex-p.startTick > ConnectTimeoutTicks {
		p.transition(Disconnected, "connect_timeout")
		p.diag.TimeoutDisconnectCount++
		p.flushQueuesLocked()
	}
}

func (p *Peer) tickConnectedLocked(tickIndex uint64) {
	if tickIndex-p.lastHeartbeatTick > HeartbeatTimeoutTicks {
		p.transition(Disconnected, "heartbeat_timeout")
		p.diag.TimeoutDisconnectCount++
		p.flushQueuesLocked()
		return
	}
	if tickIndex-p.lastSentHeartbeatTick >= HeartbeatSendIntervalTicks {
		p.sendControlLocked(controlHeartbeat)
		p.lastSentHeartbeatTick = tickIndex
	}
}

type controlKind byte

const (
	controlSYN       controlKind = 1
	controlACK       controlKind = 2
	controlHeartbeat controlKind = 3
)

func (p *Peer) sendSYNLocked() {
	if p.remoteAddr == nil {
		return
	}
	p.diag.ConnectProbeSendCount++
	if !p.sendControlLocked(controlSYN) {
		p.diag.ConnectProbeSendFailureCount++
	}
}

func (p *Peer) sendControlLocked(kind controlKind) bool {
	if p.remoteAddr == nil {
		return false
	}
	env := wire.Encode(wire.Envelope{Kind: wire.KindControl, Payload: []byte{byte(kind)}})
	_, err := p.conn.WriteTo(env, p.remoteAddr)
	return err == nil
}

// SubmitLocalCommand always enqueues for local consumption; if Connected
// and the peer is not the self-endpoint, it is additionally encoded and
// sent over the wire.
func (p *Peer) SubmitLocalCommand(payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	env := wire.Envelope{Kind: wire.KindCommand, Payload: payload}
	if len(p.localCommands) >= MaxPendingCommands {
		p.diag.DroppedCommandCount++
	} else {
		p.localCommands = append(p.localCommands, env)
	}

	if p.state == Connected && p.remoteAddr != nil && !p.isSelfEndpoint() {
		if _, err := p.conn.WriteTo(wire.Encode(env), p.remoteAddr); err != nil {
			p.diag.UnsentCommandCount++
		}
	}
}

// DrainLocalCommands returns and clears the queued local commands.
func (p *Peer) DrainLocalCommands() []wire.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.localCommands
	p.localCommands = nil
	return out
}

// DrainRemoteCommands returns and clears commands received from the peer.
func (p *Peer) DrainRemoteCommands() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.remoteCommands
	p.remoteCommands = nil
	return out
}

// DrainRemoteChunkPayloads returns and clears chunk payloads received
// from the peer (either single snapshots or split batch entries).
func (p *Peer) DrainRemoteChunkPayloads() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.remoteChunks
	p.remoteChunks = nil
	return out
}

// PublishWorldSnapshot encodes chunks as a ChunkSnapshotBatch and sends
// them in one datagram. On a self-endpoint the chunks are routed
// directly into the local receive queue instead of over the wire, so
// loopback tests observe them.
func (p *Peer) PublishWorldSnapshot(chunks []wire.ChunkSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isSelfEndpoint() {
		for _, c := range chunks {
			p.enqueueRemoteChunkLocked(wire.EncodeChunkSnapshot(c))
		}
		return
	}
	if p.state != Connected || p.remoteAddr == nil {
		p.diag.UnsentSnapshotCount++
		return
	}
	payload := wire.EncodeChunkSnapshotBatch(chunks)
	env := wire.Encode(wire.Envelope{Kind: wire.KindChunkSnapshotBatch, Payload: payload})
	if _, err := p.conn.WriteTo(env, p.remoteAddr); err != nil {
		p.diag.UnsentSnapshotCount++
	}
}

func (p *Peer) enqueueRemoteChunkLocked(payload []byte) {
	if len(p.remoteChunks) >= MaxPendingRemoteChunkPayloads {
		p.diag.DroppedSnapshotCount++
		return
	}
	p.remoteChunks = append(p.remoteChunks, payload)
}

// ReadInbound processes one already-received datagram (addr, raw) on
// the current tick. Callers typically pump this from a goroutine
// reading p.conn via ReadFrom and forward each datagram here.
func (p *Peer) ReadInbound(tickIndex uint64, addr net.Addr, raw []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	env, err := wire.Decode(raw)
	if err != nil {
		p.diag.MalformedDatagramCount++
		return
	}

	expectedRemote := p.remoteAddr != nil && p.remoteAddr.String() == addr.String()
	adoptEligible := p.remoteAddr == nil && p.state != Connected && env.Kind == wire.KindControl && len(env.Payload) == 1 && controlKind(env.Payload[0]) == controlSYN

	if !expectedRemote && !adoptEligible {
		p.diag.IgnoredUnexpectedSenderCount++
		return
	}
	if adoptEligible {
		p.remoteAddr = addr
		p.dynamic = true
		if p.state == Disconnected {
			p.transition(Connecting, "adopted_syn")
			p.probeScheduled = true
			p.nextProbeTick = tickIndex + InitialProbeIntervalTicks
			p.probeInterval = InitialProbeIntervalTicks
		}
	}

	switch env.Kind {
	case wire.KindControl:
		p.handleControlLocked(tickIndex, env.Payload)
	case wire.KindCommand:
		p.enqueueRemoteCommandLocked(env.Payload)
	case wire.KindChunkSnapshot:
		p.enqueueRemoteChunkLocked(env.Payload)
	case wire.KindChunkSnapshotBatch:
		snaps, err := wire.DecodeChunkSnapshotBatch(env.Payload)
		if err != nil {
			p.diag.MalformedDatagramCount++
			return
		}
		for _, snap := range snaps {
			p.enqueueRemoteChunkLocked(wire.EncodeChunkSnapshot(snap))
		}
	}
}

func (p *Peer) enqueueRemoteCommandLocked(payload []byte) {
	if p.state != Connected && p.state != Connecting {
		return
	}
	if len(p.remoteCommands) >= MaxPendingCommands {
		p.diag.DroppedCommandCount++
		return
	}
	p.remoteCommands = append(p.remoteCommands, payload)
}

func (p *Peer) handleControlLocked(tickIndex uint64, payload []byte) {
	if len(payload) != 1 {
		p.diag.MalformedDatagramCount++
		return
	}
	switch controlKind(payload[0]) {
	case controlSYN:
		p.sendControlLocked(controlACK)
		if p.state == Disconnected {
			p.transition(Connecting, "recv_syn")
			p.probeScheduled = true
			p.nextProbeTick = tickIndex + InitialProbeIntervalTicks
			p.probeInterval = InitialProbeIntervalTicks
		}
	case controlACK:
		p.handshakeAckReceived = true
	case controlHeartbeat:
		p.lastHeartbeatTick = tickIndex
		if p.state == Connecting {
			p.handshakeAckReceived = true
		}
	default:
		p.diag.IgnoredHeartbeatCount++
	}
}

// State returns the current session state.
func (p *Peer) State() SessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// StateChangedSince reports whether the session state has transitioned
// since lastObservedTick, and the tick it changed at.
func (p *Peer) StateChangedSince(lastObservedTick uint64) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateChangedAt > lastObservedTick {
		return p.stateChangedAt, true
	}
	return 0, false
}
