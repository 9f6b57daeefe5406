package wire

import (
	"strings"
	"time"
)

// MountPoint describes one locally mounted, peer-discoverable directory.
//
// FileCount and TotalSize are computed once at mount time and may be
// stale thereafter; they are not refreshed on every list/search.
type MountPoint struct {
	ID            string    `json:"id"` // uuid
	CanonicalRoot string    `json:"canonical_root"`
	DisplayName   string    `json:"display_name"`
	ReadOnly      bool      `json:"read_only"`
	MountedAt     time.Time `json:"mounted_at"`
	FileCount     uint64    `json:"file_count"`
	TotalSize     uint64    `json:"total_size"`
}

// DirectoryEntry is one row of a DirectoryIndex snapshot.
type DirectoryEntry struct {
	Path     string    `json:"path"` // absolute, canonical filesystem path
	Size     uint64    `json:"size"`
	IsDir    bool      `json:"is_dir"`
	Modified time.Time `json:"modified"`
}

// DirectoryIndex is a point-in-time snapshot of the files under a mounted
// root, subject to the scan invariants in the design (depth <= 20, at
// most 10000 entries, symlinks and most hidden entries excluded).
type DirectoryIndex struct {
	MountID string           `json:"mount_id"`
	Entries []DirectoryEntry `json:"entries"`
}

// SearchToken is a time-bounded capability authorizing keyword/pattern
// queries against a specific mount's paths.
type SearchToken struct {
	TokenID     string    `json:"token_id"`
	MountID     string    `json:"mount_id"`
	Patterns    []string  `json:"patterns"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Active      bool      `json:"active"`
}

// FileAuthorization ties an auth_id to one canonical path that lay under
// some mount root at the moment of authorization.
type FileAuthorization struct {
	AuthID        string    `json:"auth_id"`
	CanonicalPath string    `json:"canonical_path"`
	Kind          string    `json:"kind"`
	Permissions   []string  `json:"permissions"`
	CreatedAt     time.Time `json:"created_at"`
	Active        bool      `json:"active"`
}

// FileMetadataRecord is one row returned by a token-scoped metadata listing.
type FileMetadataRecord struct {
	Path     string `json:"path"`
	Size     uint64 `json:"size"`
	IsFile   bool   `json:"is_file"`
	IsDir    bool   `json:"is_dir"`
	Modified int64  `json:"modified"` // unix seconds
}

// MatchPattern implements the three-shape pattern syntax from the mount
// manager design: "prefix*" (prefix match), "*suffix" (suffix match), and
// plain substring otherwise.
func MatchPattern(pattern, path string) bool {
	switch {
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(path, pattern[:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(path, pattern[1:])
	default:
		return strings.Contains(path, pattern)
	}
}
