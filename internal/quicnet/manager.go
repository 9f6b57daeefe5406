// Package quicnet implements the QUIC Network Manager (C8): a QUIC
// listener/dialer secured by mTLS, per-peer connection-state tracking, a
// P2P discovery sub-task, and chunked file-transfer tasks.
package quicnet

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/tlsmanager"
	"github.com/VacuolePaoo/gatewaygui/internal/udpnet"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

// Tuning constants mirrored from the design's concurrency/resource model.
const (
	HandshakeTimeout    = 30 * time.Second
	ConnectionIdleAfter = 300 * time.Second
	DiscoveryInterval   = 30 * time.Second
	DiscoverySweepAfter = 5 * time.Minute
	TransferChunkSize   = 8 * 1024
	ProgressInterval    = 500 * time.Millisecond
)

// EventKind tags the variants of Event.
type EventKind int

const (
	EventMessageReceived EventKind = iota
	EventConnectionEstablished
	EventConnectionLost
	EventConnectionFailed
	EventBroadcastSent
	EventNetworkError
)

// Event is emitted on the single-consumer Events() channel.
type Event struct {
	Kind    EventKind
	Message wire.ControlMessage
	Addr    string
	Reason  string
}

// connState tracks one peer connection's liveness.
type connState struct {
	conn          quic.Connection
	establishedAt time.Time
	lastActive    time.Time
}

// discoveredNode mirrors one entry of the P2P discovery table.
type discoveredNode struct {
	id            wire.PeerID
	name          string
	addr          string
	discoveredAt  time.Time
	lastSeen      time.Time
}

// Manager owns the QUIC listener/dialer, connection-state table,
// discovery sub-task, and in-flight file-transfer tasks.
type Manager struct {
	localAddr string
	pconn     *net.UDPConn
	listener  *quic.Listener
	tls       *tlsmanager.Manager

	events chan Event
	done   chan struct{}

	mu    sync.RWMutex
	conns map[string]*connState // peer address -> state

	discoveryMu      sync.Mutex
	discoveryEnabled bool
	discoveryCancel  context.CancelFunc
	discovered       map[wire.PeerID]*discoveredNode
	selfID           wire.PeerID
	selfName         string

	transfersMu sync.RWMutex
	transfers   map[string]*wire.TransferTask
	cancels     map[string]context.CancelFunc
}

// New binds a UDP socket at bindAddr and starts a QUIC listener secured
// by tlsMgr's server configuration.
func New(bindAddr string, tlsMgr *tlsmanager.Manager, selfID wire.PeerID, selfName string) (*Manager, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindValidation, "resolve bind address: "+err.Error())
	}
	pconn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind quic udp socket: %w", err)
	}

	serverCfg, err := tlsMgr.ServerTLSConfig()
	if err != nil {
		_ = pconn.Close()
		return nil, fmt.Errorf("build server tls config: %w", err)
	}

	listener, err := quic.Listen(pconn, serverCfg, quicConfig())
	if err != nil {
		_ = pconn.Close()
		return nil, fmt.Errorf("start quic listener: %w", err)
	}

	return &Manager{
		localAddr:  bindAddr,
		pconn:      pconn,
		listener:   listener,
		tls:        tlsMgr,
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		conns:      make(map[string]*connState),
		discovered: make(map[wire.PeerID]*discoveredNode),
		selfID:     selfID,
		selfName:   selfName,
		transfers:  make(map[string]*wire.TransferTask),
		cancels:    make(map[string]context.CancelFunc),
	}, nil
}

func quicConfig() *quic.Config {
	return &quic.Config{
		HandshakeIdleTimeout: HandshakeTimeout,
		MaxIdleTimeout:       ConnectionIdleAfter,
		KeepAlivePeriod:      ConnectionIdleAfter / 3,
	}
}

// Events returns the manager's single-consumer event channel.
func (m *Manager) Events() <-chan Event { return m.events }

func (m *Manager) emit(e Event) {
	select {
	case m.events <- e:
	default:
	}
}

// Start launches the accept loop and the periodic connection sweep.
func (m *Manager) Start() {
	go m.acceptLoop()
	go m.sweepLoop()
}

// Shutdown closes the listener and every tracked connection.
func (m *Manager) Shutdown() error {
	close(m.done)

	m.mu.Lock()
	for _, st := range m.conns {
		_ = st.conn.CloseWithError(0, "shutdown")
	}
	m.conns = make(map[string]*connState)
	m.mu.Unlock()

	return m.listener.Close()
}

func (m *Manager) acceptLoop() {
	for {
		ctx, cancel := context.WithCancel(context.Background())
		conn, err := m.listener.Accept(ctx)
		cancel()
		if err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			m.emit(Event{Kind: EventNetworkError, Reason: "accept: " + err.Error()})
			continue
		}
		go m.handleConnection(conn)
	}
}

func (m *Manager) handleConnection(conn quic.Connection) {
	addr := conn.RemoteAddr().String()
	now := time.Now()

	m.mu.Lock()
	_, existed := m.conns[addr]
	m.conns[addr] = &connState{conn: conn, establishedAt: now, lastActive: now}
	m.mu.Unlock()

	if !existed {
		m.emit(Event{Kind: EventConnectionEstablished, Addr: addr})
	}

	for {
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			m.removeConnection(addr)
			return
		}
		go m.handleStream(addr, stream)
	}
}

func (m *Manager) handleStream(addr string, stream quic.Stream) {
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return
	}

	m.touch(addr)

	msg, err := wire.DecodeControlMessage(data)
	if err != nil {
		return
	}
	if err := validateControlMessage(msg); err != nil {
		return
	}
	m.emit(Event{Kind: EventMessageReceived, Message: msg, Addr: addr})
}

func validateControlMessage(msg wire.ControlMessage) error {
	switch v := msg.(type) {
	case wire.Broadcast:
		if v.Peer.Name == "" {
			return gwerrors.New(gwerrors.KindValidation, "peer name must not be empty")
		}
	case wire.RegisterRequest:
		if v.Peer.Name == "" {
			return gwerrors.New(gwerrors.KindValidation, "peer name must not be empty")
		}
	case wire.Discovery:
		if v.NodeName == "" || v.NodeAddr == "" {
			return gwerrors.New(gwerrors.KindValidation, "discovery message missing name or address")
		}
	case wire.Error:
		if v.Code == 0 {
			return gwerrors.New(gwerrors.KindValidation, "error message must carry a non-zero code")
		}
	}
	return nil
}

func (m *Manager) touch(addr string) {
	m.mu.Lock()
	if st, ok := m.conns[addr]; ok {
		st.lastActive = time.Now()
	}
	m.mu.Unlock()
}

func (m *Manager) removeConnection(addr string) {
	m.mu.Lock()
	_, ok := m.conns[addr]
	delete(m.conns, addr)
	m.mu.Unlock()
	if ok {
		m.emit(Event{Kind: EventConnectionLost, Addr: addr})
	}
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

func (m *Manager) sweepExpired() {
	cutoff := time.Now().Add(-ConnectionIdleAfter)
	m.mu.RLock()
	var expired []string
	for addr, st := range m.conns {
		if st.lastActive.Before(cutoff) {
			expired = append(expired, addr)
		}
	}
	m.mu.RUnlock()

	for _, addr := range expired {
		m.removeConnection(addr)
	}
}

// Send delivers message to target, dialing a fresh connection if none is
// already established. It opens one stream per message.
func (m *Manager) Send(ctx context.Context, message wire.ControlMessage, target string) error {
	conn, err := m.connectionFor(ctx, target)
	if err != nil {
		m.emit(Event{Kind: EventConnectionFailed, Addr: target, Reason: err.Error()})
		return err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		m.removeConnection(target)
		m.emit(Event{Kind: EventConnectionFailed, Addr: target, Reason: err.Error()})
		return err
	}
	defer stream.Close()

	data, err := wire.EncodeControlMessage(message)
	if err != nil {
		return fmt.Errorf("encode control message: %w", err)
	}
	if _, err := stream.Write(data); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	m.touch(target)
	return nil
}

// Reply is Send addressed back to the origin of a received message.
func (m *Manager) Reply(ctx context.Context, response wire.ControlMessage, origin string) error {
	return m.Send(ctx, response, origin)
}

func (m *Manager) connectionFor(ctx context.Context, target string) (quic.Connection, error) {
	m.mu.RLock()
	st, ok := m.conns[target]
	m.mu.RUnlock()
	if ok {
		return st.conn, nil
	}

	clientCfg, err := m.tls.ClientTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("build client tls config: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	conn, err := quic.DialAddr(dialCtx, target, clientCfg, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	now := time.Now()
	m.mu.Lock()
	m.conns[target] = &connState{conn: conn, establishedAt: now, lastActive: now}
	m.mu.Unlock()

	m.emit(Event{Kind: EventConnectionEstablished, Addr: target})
	go m.handleConnection(conn)
	return conn, nil
}

// Broadcast sends message, best-effort, to every synthesized
// broadcast/multicast address over the raw underlying socket rather than
// a full per-peer QUIC handshake — broadcast is inherently
// connectionless, unlike the rest of this manager's traffic.
func (m *Manager) Broadcast(message wire.ControlMessage) (int, error) {
	data, err := wire.EncodeControlMessage(message)
	if err != nil {
		return 0, fmt.Errorf("encode control message: %w", err)
	}

	port := m.pconn.LocalAddr().(*net.UDPAddr).Port
	sent := 0
	for _, addr := range udpnet.BroadcastAddresses(port) {
		if _, err := m.pconn.WriteToUDP(data, addr); err == nil {
			sent++
		}
	}
	m.emit(Event{Kind: EventBroadcastSent, Message: message})
	return sent, nil
}

// ActiveConnections reports the number of tracked live connections.
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Disconnect removes addr from the connection table and closes it.
func (m *Manager) Disconnect(addr string) bool {
	m.mu.Lock()
	st, ok := m.conns[addr]
	delete(m.conns, addr)
	m.mu.Unlock()
	if !ok {
		return false
	}
	_ = st.conn.CloseWithError(0, "disconnect requested")
	m.emit(Event{Kind: EventConnectionLost, Addr: addr})
	return true
}

// StartDiscovery enables the P2P discovery sub-task: every
// DiscoveryInterval, broadcast a Discovery message; every
// DiscoverySweepAfter, drop nodes not seen since.
func (m *Manager) StartDiscovery() {
	m.discoveryMu.Lock()
	defer m.discoveryMu.Unlock()
	if m.discoveryEnabled {
		return
	}
	m.discoveryEnabled = true

	ctx, cancel := context.WithCancel(context.Background())
	m.discoveryCancel = cancel
	go m.discoveryLoop(ctx)
}

// StopDiscovery disables the sub-task.
func (m *Manager) StopDiscovery() {
	m.discoveryMu.Lock()
	defer m.discoveryMu.Unlock()
	if !m.discoveryEnabled {
		return
	}
	m.discoveryEnabled = false
	if m.discoveryCancel != nil {
		m.discoveryCancel()
	}
}

func (m *Manager) discoveryLoop(ctx context.Context) {
	announce := time.NewTicker(DiscoveryInterval)
	sweep := time.NewTicker(DiscoverySweepAfter)
	defer announce.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-announce.C:
			_, _ = m.Broadcast(wire.Discovery{NodeID: m.selfID, NodeName: m.selfName, NodeAddr: m.localAddr})
		case <-sweep.C:
			m.sweepDiscovered()
		}
	}
}

// HandleDiscovery records or refreshes a discovered peer, ignoring
// self-originated announcements.
func (m *Manager) HandleDiscovery(d wire.Discovery) {
	if d.NodeID == m.selfID {
		return
	}
	now := time.Now()
	m.discoveryMu.Lock()
	defer m.discoveryMu.Unlock()
	if existing, ok := m.discovered[d.NodeID]; ok {
		existing.lastSeen = now
		existing.name = d.NodeName
		existing.addr = d.NodeAddr
		return
	}
	m.discovered[d.NodeID] = &discoveredNode{
		id: d.NodeID, name: d.NodeName, addr: d.NodeAddr,
		discoveredAt: now, lastSeen: now,
	}
}

// DiscoveredNodes snapshots the current discovery table.
func (m *Manager) DiscoveredNodes() []wire.PeerDescriptor {
	m.discoveryMu.Lock()
	defer m.discoveryMu.Unlock()
	out := make([]wire.PeerDescriptor, 0, len(m.discovered))
	for _, n := range m.discovered {
		out = append(out, wire.PeerDescriptor{ID: n.id, Name: n.name, Address: n.addr, LastSeen: n.lastSeen})
	}
	return out
}

func (m *Manager) sweepDiscovered() {
	cutoff := time.Now().Add(-DiscoverySweepAfter)
	m.discoveryMu.Lock()
	defer m.discoveryMu.Unlock()
	for id, n := range m.discovered {
		if n.lastSeen.Before(cutoff) {
			delete(m.discovered, id)
		}
	}
}

// CreateTransferTask starts a chunked local copy from source to target,
// tracked under taskID, updating progress at most every ProgressInterval.
func (m *Manager) CreateTransferTask(taskID, source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return gwerrors.WithPath(gwerrors.KindValidation, "source file does not exist", source)
	}

	task := &wire.TransferTask{
		ID: taskID, SourcePath: source, TargetPath: target,
		Status: wire.TransferPending, Total: uint64(info.Size()), StartedAt: time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.transfersMu.Lock()
	m.transfers[taskID] = task
	m.cancels[taskID] = cancel
	m.transfersMu.Unlock()

	go m.runTransfer(ctx, taskID)
	return nil
}

func (m *Manager) runTransfer(ctx context.Context, taskID string) {
	m.setTransferStatus(taskID, wire.TransferTransferring)

	task, ok := m.transferSnapshot(taskID)
	if !ok {
		return
	}

	if dir := filepath.Dir(task.TargetPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			m.failTransfer(taskID, err)
			return
		}
	}

	src, err := os.Open(task.SourcePath)
	if err != nil {
		m.failTransfer(taskID, err)
		return
	}
	defer src.Close()

	dst, err := os.Create(task.TargetPath)
	if err != nil {
		m.failTransfer(taskID, err)
		return
	}
	defer dst.Close()

	buf := make([]byte, TransferChunkSize)
	var transferred uint64
	start := time.Now()
	lastUpdate := start

	for {
		select {
		case <-ctx.Done():
			_ = dst.Truncate(0)
			return
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				m.failTransfer(taskID, werr)
				return
			}
			transferred += uint64(n)

			if now := time.Now(); now.Sub(lastUpdate) >= ProgressInterval {
				elapsed := now.Sub(start).Seconds()
				speed := uint64(0)
				if elapsed > 0 {
					speed = uint64(float64(transferred) / elapsed)
				}
				m.updateProgress(taskID, transferred, speed)
				lastUpdate = now
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			m.failTransfer(taskID, readErr)
			return
		}
	}

	m.transfersMu.Lock()
	if t, ok := m.transfers[taskID]; ok && !t.Status.Terminal() {
		t.Transferred = transferred
		t.Status = wire.TransferCompleted
	}
	delete(m.cancels, taskID)
	m.transfersMu.Unlock()
}

func (m *Manager) setTransferStatus(taskID string, status wire.TransferStatus) {
	m.transfersMu.Lock()
	defer m.transfersMu.Unlock()
	if t, ok := m.transfers[taskID]; ok {
		t.Status = status
	}
}

func (m *Manager) updateProgress(taskID string, transferred, speed uint64) {
	m.transfersMu.Lock()
	defer m.transfersMu.Unlock()
	t, ok := m.transfers[taskID]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Transferred = transferred
	t.SpeedBPS = speed
	if speed > 0 && transferred < t.Total {
		remaining := t.Total - transferred
		eta := time.Duration(remaining/speed) * time.Second
		t.ETA = &eta
	}
}

func (m *Manager) failTransfer(taskID string, err error) {
	m.transfersMu.Lock()
	defer m.transfersMu.Unlock()
	if t, ok := m.transfers[taskID]; ok && !t.Status.Terminal() {
		t.Status = wire.TransferError
		t.Err = err.Error()
	}
	delete(m.cancels, taskID)
}

func (m *Manager) transferSnapshot(taskID string) (wire.TransferTask, bool) {
	m.transfersMu.RLock()
	defer m.transfersMu.RUnlock()
	t, ok := m.transfers[taskID]
	if !ok {
		return wire.TransferTask{}, false
	}
	return *t, true
}

// CancelTransfer cancels a task from Pending or Transferring; terminal
// states refuse.
func (m *Manager) CancelTransfer(taskID string) error {
	m.transfersMu.Lock()
	defer m.transfersMu.Unlock()

	t, ok := m.transfers[taskID]
	if !ok {
		return gwerrors.New(gwerrors.KindNotFound, "unknown transfer task: "+taskID)
	}
	if t.Status.Terminal() {
		return gwerrors.New(gwerrors.KindValidation, "transfer already in a terminal state")
	}

	t.Status = wire.TransferCancelled
	if cancel, ok := m.cancels[taskID]; ok {
		cancel()
		delete(m.cancels, taskID)
	}
	return nil
}

// GetTransferStatus returns the current snapshot for taskID.
func (m *Manager) GetTransferStatus(taskID string) (wire.TransferTask, error) {
	t, ok := m.transferSnapshot(taskID)
	if !ok {
		return wire.TransferTask{}, gwerrors.New(gwerrors.KindNotFound, "unknown transfer task: "+taskID)
	}
	return t, nil
}
