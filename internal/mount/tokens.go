package mount

import (
	"time"

	"github.com/google/uuid"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/pathutil"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

// DefaultTokenTTL is used when CreateSearchToken is called with ttl <= 0.
const DefaultTokenTTL = 15 * time.Minute

// CreateSearchToken issues a time-bounded token scoping keyword/pattern
// search and read access to one mount.
func (m *Manager) CreateSearchToken(mountID string, patterns, permissions []string, ttl time.Duration) (wire.SearchToken, error) {
	m.mu.RLock()
	_, ok := m.mounts[mountID]
	m.mu.RUnlock()
	if !ok {
		return wire.SearchToken{}, gwerrors.New(gwerrors.KindNotFound, "mount not found")
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	tok := &wire.SearchToken{
		TokenID:     uuid.NewString(),
		MountID:     mountID,
		Patterns:    patterns,
		Permissions: permissions,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Active:      true,
	}

	m.mu.Lock()
	m.tokens[tok.TokenID] = tok
	m.mu.Unlock()

	return *tok, nil
}

// ValidateToken reports whether tokenID is active, unexpired, and whether
// path matches at least one of its patterns. A token with no patterns
// matches nothing.
func (m *Manager) ValidateToken(tokenID, path string) bool {
	m.mu.RLock()
	tok, ok := m.tokens[tokenID]
	m.mu.RUnlock()
	if !ok || !tok.Active {
		return false
	}
	if time.Now().After(tok.ExpiresAt) {
		return false
	}
	for _, pattern := range tok.Patterns {
		if wire.MatchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// CleanupExpiredTokens deletes every token past its expiry and returns
// the number removed.
func (m *Manager) CleanupExpiredTokens() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, tok := range m.tokens {
		if now.After(tok.ExpiresAt) {
			delete(m.tokens, id)
			removed++
		}
	}
	return removed
}

// MetadataByToken lists every entry in the token's mount whose path
// matches one of the token's patterns.
func (m *Manager) MetadataByToken(tokenID string) ([]wire.FileMetadataRecord, error) {
	m.mu.RLock()
	tok, ok := m.tokens[tokenID]
	m.mu.RUnlock()
	if !ok || !tok.Active {
		return nil, gwerrors.New(gwerrors.KindNotFound, "token not found")
	}
	if time.Now().After(tok.ExpiresAt) {
		return nil, gwerrors.New(gwerrors.KindAuthorization, "token expired")
	}

	idx, ok := m.Index(tok.MountID)
	if !ok {
		return nil, gwerrors.New(gwerrors.KindNotFound, "mount not found")
	}

	out := make([]wire.FileMetadataRecord, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		matched := false
		for _, pattern := range tok.Patterns {
			if wire.MatchPattern(pattern, e.Path) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		out = append(out, wire.FileMetadataRecord{
			Path:     e.Path,
			Size:     e.Size,
			IsFile:   !e.IsDir,
			IsDir:    e.IsDir,
			Modified: e.Modified.Unix(),
		})
	}
	return out, nil
}

// Authorize mints a capability over a specific path, which must
// canonicalize to somewhere under a currently mounted root. The record is
// stored as active and is not consumed or limited by use.
func (m *Manager) Authorize(path, kind string, permissions []string) (wire.FileAuthorization, error) {
	validator := pathutil.New()
	canonical, err := validator.ValidateAndNormalize(path)
	if err != nil {
		return wire.FileAuthorization{}, err
	}

	if _, ok := m.ResolveUnderAnyMount(canonical); !ok {
		return wire.FileAuthorization{}, gwerrors.WithPath(gwerrors.KindAuthorization, "path outside any mount", canonical)
	}

	auth := wire.FileAuthorization{
		AuthID:        uuid.NewString(),
		CanonicalPath: canonical,
		Kind:          kind,
		Permissions:   permissions,
		CreatedAt:     time.Now(),
		Active:        true,
	}

	m.mu.Lock()
	m.auths[auth.AuthID] = &auth
	m.authByPath[canonical] = auth.AuthID
	m.mu.Unlock()

	return auth, nil
}
