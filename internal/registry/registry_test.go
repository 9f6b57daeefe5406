package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

func TestAddOrUpdate_RejectsLocalID(t *testing.T) {
	local := wire.NewPeerID()
	r := New(local)

	if isNew := r.AddOrUpdate(wire.PeerDescriptor{ID: local, Name: "self"}); isNew {
		t.Fatal("expected AddOrUpdate of local id to be a no-op")
	}
	if _, ok := r.Get(local); ok {
		t.Fatal("local id must never be stored")
	}
}

func TestAddOrUpdate_LastSeenMonotonic(t *testing.T) {
	r := New(wire.NewPeerID())
	peer := wire.NewPeerID()

	if isNew := r.AddOrUpdate(wire.PeerDescriptor{ID: peer, Name: "alpha"}); !isNew {
		t.Fatal("expected first insert to report new")
	}
	first, _ := r.Get(peer)

	time.Sleep(time.Millisecond)
	if isNew := r.AddOrUpdate(wire.PeerDescriptor{ID: peer, Name: "alpha"}); isNew {
		t.Fatal("expected second insert to report existing")
	}
	second, _ := r.Get(peer)

	if second.LastSeen.Before(first.LastSeen) {
		t.Fatalf("LastSeen regressed: %v -> %v", first.LastSeen, second.LastSeen)
	}
}

func TestCleanupExpired_RemovesStaleEntries(t *testing.T) {
	r := New(wire.NewPeerID())
	for i := 0; i < 10000; i++ {
		r.AddOrUpdate(wire.PeerDescriptor{ID: wire.NewPeerID(), Name: "p"})
	}
	if r.Size() != 10000 {
		t.Fatalf("expected 10000 entries, got %d", r.Size())
	}

	time.Sleep(time.Millisecond)
	removed := r.CleanupExpired(0)
	if removed != 10000 || r.Size() != 0 {
		t.Fatalf("expected full sweep to remove all entries, removed=%d size=%d", removed, r.Size())
	}

	if r.CleanupExpired(0) != 0 {
		t.Fatal("expected second sweep to be a no-op (idempotent)")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New(wire.NewPeerID())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := wire.NewPeerID()
			r.AddOrUpdate(wire.PeerDescriptor{ID: id, Name: "p"})
			r.Get(id)
			r.Remove(id)
		}()
	}
	wg.Wait()
}

func TestAllExcept(t *testing.T) {
	r := New(wire.NewPeerID())
	a, b := wire.NewPeerID(), wire.NewPeerID()
	r.AddOrUpdate(wire.PeerDescriptor{ID: a, Name: "a"})
	r.AddOrUpdate(wire.PeerDescriptor{ID: b, Name: "b"})

	got := r.AllExcept(a)
	if len(got) != 1 || got[0].ID != b {
		t.Fatalf("expected only b, got %+v", got)
	}
}
