// Package udpnet implements the UDP Broadcast Manager (C9): a datagram
// socket independent of the QUIC control channel, used for token-tagged
// broadcast discovery, cross-mount search, and base64 file delivery.
package udpnet

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/mount"
	"github.com/VacuolePaoo/gatewaygui/internal/securefile"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

// EventKind tags the variants of Event.
type EventKind int

const (
	EventTokenReceived EventKind = iota
	EventNetworkError
)

// Event is emitted on the single-consumer Events() channel.
type Event struct {
	Kind    EventKind
	Token   wire.Token
	Sender  net.Addr
	Message string
}

const readBufferSize = 65536

// Manager binds a discovery-dedicated UDP socket, maintains named mounts
// (backed by the Mount Manager) with a side-file index for reload, and
// exchanges wire.Token datagrams with peers.
type Manager struct {
	conn   *net.UDPConn
	port   int
	reader *securefile.Reader
	mounts *mount.Manager
	sideDir string

	mu         sync.RWMutex
	nameToMountID map[string]string

	events chan Event
	done   chan struct{}
	stopped bool
}

// New binds a UDP socket at bindAddr (e.g. "0.0.0.0:9401") and prepares a
// named-mount registry backed by the given Mount Manager. sideDir holds
// the per-mount DirectoryIndex persistence files used for reload.
func New(bindAddr string, mounts *mount.Manager, reader *securefile.Reader, sideDir string) (*Manager, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, gwerrors.New(gwerrors.KindValidation, "resolve bind address: "+err.Error())
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind udp broadcast socket: %w", err)
	}

	if sideDir != "" {
		if err := os.MkdirAll(sideDir, 0o755); err != nil {
			return nil, fmt.Errorf("create mount index directory: %w", err)
		}
	}

	return &Manager{
		conn:          conn,
		port:          conn.LocalAddr().(*net.UDPAddr).Port,
		reader:        reader,
		mounts:        mounts,
		sideDir:       sideDir,
		nameToMountID: make(map[string]string),
		events:        make(chan Event, 256),
		done:          make(chan struct{}),
	}, nil
}

// Start launches the listener task. It returns immediately; events
// arrive on Events().
func (m *Manager) Start() {
	go m.listen()
}

// Stop closes the socket and the listener task exits on its next read.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.mu.Unlock()

	close(m.done)
	return m.conn.Close()
}

// Events returns the manager's single-consumer event channel.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) emit(e Event) {
	select {
	case m.events <- e:
	default:
	}
}

func (m *Manager) listen() {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-m.done:
			return
		default:
		}

		n, addr, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			m.emit(Event{Kind: EventNetworkError, Message: sanitizeNetError(err)})
			time.Sleep(100 * time.Millisecond)
			continue
		}

		token, err := wire.DecodeToken(buf[:n])
		if err != nil {
			// Not a recognized Token; legacy/unknown payloads are
			// silently ignored per the listener contract.
			continue
		}
		m.emit(Event{Kind: EventTokenReceived, Token: token, Sender: addr})
	}
}

func sanitizeNetError(err error) string {
	// net errors can embed local addresses; keep only the message shape
	// callers need to act on (timeout vs. closed vs. other).
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return "udp read timeout"
	}
	return "udp read error"
}

// BroadcastToken sends t to every synthesized broadcast/multicast
// address and returns the count of sends that succeeded.
func (m *Manager) BroadcastToken(t wire.Token) (int, error) {
	data, err := wire.EncodeToken(t)
	if err != nil {
		return 0, fmt.Errorf("encode token: %w", err)
	}

	sent := 0
	for _, addr := range BroadcastAddresses(m.port) {
		if _, err := m.conn.WriteToUDP(data, addr); err == nil {
			sent++
		}
	}
	return sent, nil
}

// SendTokenTo sends t to a single address.
func (m *Manager) SendTokenTo(t wire.Token, addr string) error {
	data, err := wire.EncodeToken(t)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return gwerrors.New(gwerrors.KindValidation, "resolve address: "+err.Error())
	}
	_, err = m.conn.WriteToUDP(data, udpAddr)
	return err
}

// SendInfoMessage is a convenience wrapper broadcasting an InfoMessage token.
func (m *Manager) SendInfoMessage(senderID wire.PeerID, text string) error {
	_, err := m.BroadcastToken(wire.InfoMessage{SenderID: senderID, Content: text, MessageID: newMessageID()})
	return err
}

// PerformanceTest broadcasts a PerformanceTest token and reports how long
// encoding and sending it took, as a synthetic local throughput probe.
func (m *Manager) PerformanceTest(testerID wire.PeerID, kind string, size uint64) (int64, error) {
	start := time.Now()
	_, err := m.BroadcastToken(wire.PerformanceTest{
		TesterID: testerID, TestType: kind, DataSize: size, StartTime: start.UnixMilli(),
	})
	if err != nil {
		return 0, err
	}
	return time.Since(start).Milliseconds(), nil
}

const mountNamePattern = `:<>|?*`

func validateMountName(name string) error {
	if len(name) == 0 || len(name) > 255 {
		return gwerrors.New(gwerrors.KindValidation, "mount name must be 1..255 characters")
	}
	if strings.ContainsAny(name, "/\\") {
		return gwerrors.New(gwerrors.KindValidation, "mount name must not contain path separators")
	}
	if strings.ContainsAny(name, mountNamePattern) {
		return gwerrors.New(gwerrors.KindValidation, "mount name contains a forbidden character")
	}
	return nil
}

// MountDirectory registers path under name, delegating the actual mount
// bookkeeping to the Mount Manager, and persists the resulting
// DirectoryIndex to a side file for reload.
func (m *Manager) MountDirectory(name, path string) (wire.MountPoint, error) {
	if err := validateMountName(name); err != nil {
		return wire.MountPoint{}, err
	}

	m.mu.RLock()
	_, exists := m.nameToMountID[name]
	m.mu.RUnlock()
	if exists {
		return wire.MountPoint{}, gwerrors.New(gwerrors.KindValidation, "mount name already in use: "+name)
	}

	point, err := m.mounts.Mount(path, name, false)
	if err != nil {
		return wire.MountPoint{}, err
	}

	m.mu.Lock()
	m.nameToMountID[name] = point.ID
	m.mu.Unlock()

	if idx, ok := m.mounts.Index(point.ID); ok {
		_ = m.persistIndex(name, idx)
	}
	return point, nil
}

// UnmountDirectory removes the named mount, returning false if it was
// not registered.
func (m *Manager) UnmountDirectory(name string) bool {
	m.mu.Lock()
	mountID, ok := m.nameToMountID[name]
	if ok {
		delete(m.nameToMountID, name)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	_ = m.mounts.Unmount(mountID)
	if m.sideDir != "" {
		_ = os.Remove(m.sidePath(name))
	}
	return true
}

// MountedDirectories lists every currently named mount.
func (m *Manager) MountedDirectories() []wire.MountPoint {
	m.mu.RLock()
	ids := make([]string, 0, len(m.nameToMountID))
	for _, id := range m.nameToMountID {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	out := make([]wire.MountPoint, 0, len(ids))
	for _, mp := range m.mounts.ListMounts() {
		for _, id := range ids {
			if mp.ID == id {
				out = append(out, mp)
				break
			}
		}
	}
	return out
}

// SearchFiles scans every mounted index for entries whose lower-cased
// path contains any lower-cased keyword (disjunctive match).
func (m *Manager) SearchFiles(keywords []string) []wire.DirectoryEntry {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}

	var matches []wire.DirectoryEntry
	for _, idx := range m.mounts.AllIndices() {
		for _, entry := range idx.Entries {
			path := strings.ToLower(entry.Path)
			for _, kw := range lowered {
				if strings.Contains(path, kw) {
					matches = append(matches, entry)
					break
				}
			}
		}
	}
	return matches
}

// ReadFile returns the base64-encoded contents of path, which must
// appear as a non-directory entry of some currently mounted index and
// pass the Secure File Reader's own allowed-roots check.
func (m *Manager) ReadFile(path string) (string, error) {
	found := false
	for _, idx := range m.mounts.AllIndices() {
		for _, e := range idx.Entries {
			if !e.IsDir && e.Path == path {
				found = true
			}
		}
	}
	if !found {
		return "", gwerrors.WithPath(gwerrors.KindAuthorization, "path not present in any mounted index", path)
	}

	data, err := m.reader.Read(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (m *Manager) sidePath(name string) string {
	return filepath.Join(m.sideDir, name+".index.json")
}

func (m *Manager) persistIndex(name string, idx wire.DirectoryIndex) error {
	if m.sideDir == "" {
		return nil
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return os.WriteFile(m.sidePath(name), data, 0o644)
}

var messageIDCounter uint64
var messageIDMu sync.Mutex

func newMessageID() string {
	messageIDMu.Lock()
	defer messageIDMu.Unlock()
	messageIDCounter++
	return fmt.Sprintf("msg-%d-%d", time.Now().UnixNano(), messageIDCounter)
}
