// Package mount implements the Mount Manager (C5): mounting/unmounting
// local directories, listing their contents, issuing and validating
// search tokens, and authorizing individual files for transfer.
package mount

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/pathutil"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

type entry struct {
	point     wire.MountPoint
	index     wire.DirectoryIndex
	validator *pathutil.Validator
}

// Manager owns every mounted root, the search tokens issued against
// them, and the file authorizations handed out for individual paths.
type Manager struct {
	mu sync.RWMutex

	mounts map[string]*entry // mount id -> entry

	tokens map[string]*wire.SearchToken // token id -> token

	auths      map[string]*wire.FileAuthorization // auth id -> authorization
	authByPath map[string]string                  // canonical path -> auth id
}

// New builds an empty Mount Manager.
func New() *Manager {
	return &Manager{
		mounts:     make(map[string]*entry),
		tokens:     make(map[string]*wire.SearchToken),
		auths:      make(map[string]*wire.FileAuthorization),
		authByPath: make(map[string]string),
	}
}

// Mount canonicalizes root, requires it to exist and be a directory,
// scans it to compute file_count/total_size, and registers a fresh
// MountPoint.
func (m *Manager) Mount(root, displayName string, readOnly bool) (wire.MountPoint, error) {
	validator := pathutil.New()
	canonical, err := validator.ValidateAndNormalize(root)
	if err != nil {
		return wire.MountPoint{}, err
	}

	isDir, statErr := pathutil.Exists(canonical)
	if statErr != nil {
		return wire.MountPoint{}, gwerrors.WithPath(gwerrors.KindNotFound, "mount root does not exist", canonical)
	}
	if !isDir {
		return wire.MountPoint{}, gwerrors.WithPath(gwerrors.KindValidation, "mount root is not a directory", canonical)
	}

	id := uuid.NewString()
	idx, fileCount, totalSize, err := scanDirectory(id, canonical)
	if err != nil {
		return wire.MountPoint{}, gwerrors.WithPath(gwerrors.KindValidation, err.Error(), canonical)
	}
	sortEntries(idx.Entries)

	point := wire.MountPoint{
		ID:            id,
		CanonicalRoot: canonical,
		DisplayName:   displayName,
		ReadOnly:      readOnly,
		MountedAt:     time.Now(),
		FileCount:     fileCount,
		TotalSize:     totalSize,
	}

	m.mu.Lock()
	m.mounts[id] = &entry{point: point, index: idx, validator: pathutil.New(canonical)}
	m.mu.Unlock()

	return point, nil
}

// Unmount removes the mount and revokes every search token issued
// against it.
func (m *Manager) Unmount(mountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mounts[mountID]; !ok {
		return gwerrors.New(gwerrors.KindNotFound, "mount not found")
	}
	delete(m.mounts, mountID)

	for id, tok := range m.tokens {
		if tok.MountID == mountID {
			delete(m.tokens, id)
		}
	}
	return nil
}

// ListMounts returns a snapshot of every currently mounted point.
func (m *Manager) ListMounts() []wire.MountPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]wire.MountPoint, 0, len(m.mounts))
	for _, e := range m.mounts {
		out = append(out, e.point)
	}
	return out
}

// List resolves relativePath against mountID's root and returns its
// directory entries, directories first then by name.
func (m *Manager) List(mountID, relativePath string) ([]wire.DirectoryEntry, error) {
	m.mu.RLock()
	e, ok := m.mounts[mountID]
	m.mu.RUnlock()
	if !ok {
		return nil, gwerrors.New(gwerrors.KindNotFound, "mount not found")
	}

	trimmed := strings.TrimLeft(relativePath, "/\\")
	joined := filepath.Join(e.point.CanonicalRoot, trimmed)

	canonical, err := e.validator.ValidateAndNormalize(joined)
	if err != nil {
		return nil, err
	}

	isDir, statErr := pathutil.Exists(canonical)
	if statErr != nil {
		return nil, gwerrors.WithPath(gwerrors.KindNotFound, "path does not exist", canonical)
	}
	if !isDir {
		return nil, gwerrors.WithPath(gwerrors.KindValidation, "path is not a directory", canonical)
	}

	listIdx, _, _, err := scanDirectory(mountID, canonical)
	if err != nil {
		return nil, gwerrors.WithPath(gwerrors.KindValidation, err.Error(), canonical)
	}

	sortEntries(listIdx.Entries)
	return listIdx.Entries, nil
}

// MountRoot returns the canonical root for a mount id, used by callers
// that need to resolve paths outside of List (e.g. the UDP read path).
func (m *Manager) MountRoot(mountID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.mounts[mountID]
	if !ok {
		return "", false
	}
	return e.point.CanonicalRoot, true
}

// Index returns the DirectoryIndex snapshot captured at mount time.
func (m *Manager) Index(mountID string) (wire.DirectoryIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.mounts[mountID]
	if !ok {
		return wire.DirectoryIndex{}, false
	}
	return e.index, true
}

// AllIndices returns every mount's DirectoryIndex, for search fan-out.
func (m *Manager) AllIndices() []wire.DirectoryIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]wire.DirectoryIndex, 0, len(m.mounts))
	for _, e := range m.mounts {
		out = append(out, e.index)
	}
	return out
}

// ResolveUnderAnyMount reports whether canonical lies under some
// currently mounted root, returning that mount's id.
func (m *Manager) ResolveUnderAnyMount(canonical string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, e := range m.mounts {
		if canonical == e.point.CanonicalRoot || strings.HasPrefix(canonical, e.point.CanonicalRoot+string(filepath.Separator)) {
			return id, true
		}
	}
	return "", false
}
