// Package access implements the gateway's network-level admission layer:
// a CIDR allow/deny rule list gating the UDP and QUIC surfaces
// independent of mount-level search tokens, and session tracking for
// currently-connected peers.
package access

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

// Action is the disposition a Rule applies to a matching address.
type Action int

const (
	ActionAllow Action = iota
	ActionDeny
)

func (a Action) String() string {
	if a == ActionDeny {
		return "deny"
	}
	return "allow"
}

// Rule gates a CIDR block with an allow or deny disposition.
type Rule struct {
	ID        string
	CIDR      string
	Action    Action
	Note      string
	CreatedAt time.Time

	network *net.IPNet
}

// List is a CIDR allow/deny rule list, consulted before a peer's first
// message is admitted. Rules are evaluated in insertion order; the first
// matching rule decides. An address matching no rule is allowed by
// default.
type List struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewList builds an empty rule list.
func NewList() *List {
	return &List{}
}

// Add appends a rule for cidr with the given action and note.
func (l *List) Add(cidr string, action Action, note string) (Rule, error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return Rule{}, gwerrors.New(gwerrors.KindValidation, "invalid CIDR: "+err.Error())
	}

	rule := Rule{
		ID:        uuid.NewString(),
		CIDR:      cidr,
		Action:    action,
		Note:      note,
		CreatedAt: time.Now(),
		network:   network,
	}

	l.mu.Lock()
	l.rules = append(l.rules, rule)
	l.mu.Unlock()
	return rule, nil
}

// Remove deletes a rule by ID, reporting whether it existed.
func (l *List) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.rules {
		if r.ID == id {
			l.rules = append(l.rules[:i], l.rules[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a snapshot of every configured rule, in evaluation order.
func (l *List) List() []Rule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

// Validate reports whether addr may reach the gateway, applying the
// first matching rule. No match defaults to allowed.
func (l *List) Validate(addr net.Addr) bool {
	ip := hostIP(addr)
	if ip == nil {
		return true
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.rules {
		if r.network != nil && r.network.Contains(ip) {
			return r.Action == ActionAllow
		}
	}
	return true
}

func hostIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return net.ParseIP(addr.String())
		}
		return net.ParseIP(host)
	}
}

// Session records a currently-connected QUIC peer.
type Session struct {
	PeerID        wire.PeerID
	Address       string
	EstablishedAt time.Time
	LastActivity  time.Time
	BytesSent     uint64
	BytesReceived uint64
}

// SessionTable tracks one Session per currently-connected peer.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[wire.PeerID]*Session
}

// NewSessionTable builds an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[wire.PeerID]*Session)}
}

// Open records a new session for peer, replacing any prior session for
// the same ID.
func (s *SessionTable) Open(peer wire.PeerID, addr string) *Session {
	now := time.Now()
	sess := &Session{PeerID: peer, Address: addr, EstablishedAt: now, LastActivity: now}

	s.mu.Lock()
	s.sessions[peer] = sess
	s.mu.Unlock()
	return sess
}

// Touch updates last-activity and traffic counters for an open session.
// It is a no-op if the peer has no open session.
func (s *SessionTable) Touch(peer wire.PeerID, sent, received uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[peer]
	if !ok {
		return
	}
	sess.LastActivity = time.Now()
	sess.BytesSent += sent
	sess.BytesReceived += received
}

// Close removes peer's session, reporting whether it existed.
func (s *SessionTable) Close(peer wire.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[peer]; !ok {
		return false
	}
	delete(s.sessions, peer)
	return true
}

// List returns a snapshot of every open session.
func (s *SessionTable) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	return out
}

// PruneMissing removes every session whose peer is not present in live,
// used by the Gateway Supervisor's session-sweep task to drop sessions
// for peers no longer present in the Registry.
func (s *SessionTable) PruneMissing(live map[wire.PeerID]struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id := range s.sessions {
		if _, ok := live[id]; !ok {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
