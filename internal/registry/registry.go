// Package registry implements the concurrent, TTL-expiring table of known
// peers (C4). It is a segmented map keyed by wire.PeerID: lookups and
// updates take a per-shard lock rather than a single global one, so
// unrelated peers never contend.
package registry

import (
	"sync"
	"time"

	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

const shardCount = 16

type shard struct {
	mu      sync.RWMutex
	entries map[wire.PeerID]wire.PeerDescriptor
}

// Registry is the concurrent map of known peers. Reads take the owning
// shard's read lock and return copies; observers may see an entry that
// a concurrent Remove deletes an instant later.
type Registry struct {
	localID wire.PeerID
	shards  [shardCount]*shard
}

// New builds a Registry that refuses to store entries keyed by localID
// (a gateway never registers itself).
func New(localID wire.PeerID) *Registry {
	r := &Registry{localID: localID}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[wire.PeerID]wire.PeerDescriptor)}
	}
	return r
}

func (r *Registry) shardFor(id wire.PeerID) *shard {
	var h byte
	for _, b := range id {
		h ^= b
	}
	return r.shards[int(h)%shardCount]
}

// AddOrUpdate inserts or refreshes a peer descriptor. It is a no-op,
// returning false, if descriptor.ID equals the local id. Otherwise it
// overwrites any existing entry (LastSeen set to now) and returns true
// iff the id was previously absent.
func (r *Registry) AddOrUpdate(descriptor wire.PeerDescriptor) bool {
	if descriptor.ID == r.localID {
		return false
	}

	descriptor.LastSeen = time.Now()

	s := r.shardFor(descriptor.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.entries[descriptor.ID]
	s.entries[descriptor.ID] = descriptor
	return !existed
}

// Get returns the descriptor for id, if present.
func (r *Registry) Get(id wire.PeerID) (wire.PeerDescriptor, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.entries[id]
	return d, ok
}

// GetByAddress scans linearly for a descriptor with the given address.
// Advisory only: addresses are not guaranteed unique across peers.
func (r *Registry) GetByAddress(address string) (wire.PeerDescriptor, bool) {
	for _, s := range r.shards {
		s.mu.RLock()
		for _, d := range s.entries {
			if d.Address == address {
				s.mu.RUnlock()
				return d, true
			}
		}
		s.mu.RUnlock()
	}
	return wire.PeerDescriptor{}, false
}

// Remove deletes the entry for id, if present.
func (r *Registry) Remove(id wire.PeerID) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// RemoveByAddress removes any entry whose address matches, used when a
// QUIC connection is lost and the owning peer id is not directly known.
func (r *Registry) RemoveByAddress(address string) {
	for _, s := range r.shards {
		s.mu.Lock()
		for id, d := range s.entries {
			if d.Address == address {
				delete(s.entries, id)
			}
		}
		s.mu.Unlock()
	}
}

// All returns a snapshot of every known peer.
func (r *Registry) All() []wire.PeerDescriptor {
	out := make([]wire.PeerDescriptor, 0)
	for _, s := range r.shards {
		s.mu.RLock()
		for _, d := range s.entries {
			out = append(out, d)
		}
		s.mu.RUnlock()
	}
	return out
}

// AllExcept returns a snapshot of every known peer other than id.
func (r *Registry) AllExcept(id wire.PeerID) []wire.PeerDescriptor {
	out := make([]wire.PeerDescriptor, 0)
	for _, s := range r.shards {
		s.mu.RLock()
		for peerID, d := range s.entries {
			if peerID != id {
				out = append(out, d)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// CleanupExpired removes every entry whose LastSeen is older than
// ttlSeconds and returns the number removed.
func (r *Registry) CleanupExpired(ttlSeconds int64) int {
	cutoff := time.Now().Add(-time.Duration(ttlSeconds) * time.Second)
	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for id, d := range s.entries {
			if d.LastSeen.Before(cutoff) {
				delete(s.entries, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Size returns the total number of registered peers.
func (r *Registry) Size() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}
