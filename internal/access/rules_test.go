package access

import (
	"net"
	"testing"

	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

func TestValidate_NoRulesAllowsByDefault(t *testing.T) {
	l := NewList()
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 5000}
	if !l.Validate(addr) {
		t.Fatal("expected address to be allowed when no rules are configured")
	}
}

func TestValidate_FirstMatchingRuleWins(t *testing.T) {
	l := NewList()
	if _, err := l.Add("10.0.0.0/8", ActionDeny, "corp net"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := l.Add("10.0.1.0/24", ActionAllow, "carve-out"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	denied := &net.UDPAddr{IP: net.ParseIP("10.0.2.5")}
	if l.Validate(denied) {
		t.Fatal("expected address matching the deny rule to be rejected")
	}

	// 10.0.1.5 matches the broader deny rule first since rules are
	// evaluated in insertion order, so the narrower allow below it is
	// never reached.
	shadowed := &net.UDPAddr{IP: net.ParseIP("10.0.1.5")}
	if l.Validate(shadowed) {
		t.Fatal("expected the first matching rule (deny) to win over a later, narrower allow")
	}
}

func TestValidate_NoMatchAllowed(t *testing.T) {
	l := NewList()
	if _, err := l.Add("192.168.0.0/16", ActionDeny, ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	outside := &net.UDPAddr{IP: net.ParseIP("8.8.8.8")}
	if !l.Validate(outside) {
		t.Fatal("expected address matching no rule to be allowed")
	}
}

func TestAdd_RejectsInvalidCIDR(t *testing.T) {
	l := NewList()
	if _, err := l.Add("not-a-cidr", ActionDeny, ""); err == nil {
		t.Fatal("expected invalid CIDR to be rejected")
	}
}

func TestRemove(t *testing.T) {
	l := NewList()
	rule, err := l.Add("10.0.0.0/8", ActionDeny, "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(l.List()) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(l.List()))
	}
	if !l.Remove(rule.ID) {
		t.Fatal("expected Remove of existing rule to report true")
	}
	if l.Remove(rule.ID) {
		t.Fatal("expected Remove of already-removed rule to report false")
	}
	if len(l.List()) != 0 {
		t.Fatal("expected rule list to be empty after removal")
	}
}

func TestSessionTable_OpenTouchClose(t *testing.T) {
	st := NewSessionTable()
	peer := wire.NewPeerID()

	sess := st.Open(peer, "127.0.0.1:9000")
	if sess.PeerID != peer {
		t.Fatal("expected opened session to carry the given peer id")
	}

	st.Touch(peer, 100, 200)
	sessions := st.List()
	if len(sessions) != 1 || sessions[0].BytesSent != 100 || sessions[0].BytesReceived != 200 {
		t.Fatalf("expected touched session to reflect traffic counters, got %+v", sessions)
	}

	if !st.Close(peer) {
		t.Fatal("expected Close of open session to report true")
	}
	if st.Close(peer) {
		t.Fatal("expected Close of already-closed session to report false")
	}
}

func TestSessionTable_Touch_UnknownPeerIsNoOp(t *testing.T) {
	st := NewSessionTable()
	st.Touch(wire.NewPeerID(), 1, 1)
	if len(st.List()) != 0 {
		t.Fatal("expected Touch of unknown peer to be a no-op")
	}
}

func TestSessionTable_PruneMissing(t *testing.T) {
	st := NewSessionTable()
	keep := wire.NewPeerID()
	drop := wire.NewPeerID()
	st.Open(keep, "127.0.0.1:1")
	st.Open(drop, "127.0.0.1:2")

	removed := st.PruneMissing(map[wire.PeerID]struct{}{keep: {}})
	if removed != 1 {
		t.Fatalf("expected 1 session pruned, got %d", removed)
	}
	sessions := st.List()
	if len(sessions) != 1 || sessions[0].PeerID != keep {
		t.Fatalf("expected only %v to remain, got %+v", keep, sessions)
	}
}
