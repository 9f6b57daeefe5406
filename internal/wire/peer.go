// Package wire defines the gateway's wire-level and in-memory data model:
// peer identity, mounts, search tokens, file authorizations, cache
// metadata, and the two tagged-union message types (Token over UDP,
// ControlMessage over QUIC). JSON is the wire contract for both unions.
package wire

import (
	"time"

	"github.com/google/uuid"
)

// PeerID is an opaque 128-bit peer identifier, stable for the lifetime of
// a gateway process.
type PeerID uuid.UUID

// NewPeerID generates a fresh random PeerID.
func NewPeerID() PeerID {
	return PeerID(uuid.New())
}

// String renders the canonical UUID form.
func (p PeerID) String() string {
	return uuid.UUID(p).String()
}

// IsZero reports whether p is the zero-value identifier.
func (p PeerID) IsZero() bool {
	return p == PeerID{}
}

// MarshalText implements encoding.TextMarshaler so PeerID serializes as a
// UUID string in JSON rather than a byte array.
func (p PeerID) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PeerID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*p = PeerID(u)
	return nil
}

// ParsePeerID parses a canonical UUID string into a PeerID.
func ParsePeerID(s string) (PeerID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PeerID{}, err
	}
	return PeerID(u), nil
}

// PeerDescriptor is a registry entry describing one known peer.
//
// Invariant: a peer is never stored against its own id. LastSeen is
// monotonically non-decreasing for a given Id across updates.
type PeerDescriptor struct {
	ID       PeerID    `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"` // host:port, the peer's reachable socket address
	LastSeen time.Time `json:"last_seen"`
}
