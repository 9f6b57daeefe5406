package mount

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

const (
	maxScanDepth   = 20
	maxScanEntries = 10000
)

// hiddenAllowList names dotfiles that are discoverable despite the
// "hidden entries excluded" rule.
var hiddenAllowList = map[string]bool{
	".gitignore":    true,
	".env.example":  true,
	".dockerignore": true,
}

// scanDirectory walks root and produces a DirectoryIndex snapshot,
// honoring the depth/entry caps, symlink exclusion, and hidden-entry
// allow-list documented on DirectoryIndex. Entries carry the absolute,
// canonical path rather than one relative to root: that path is the
// same string a DirectorySearchResponse hands back to a peer, and it
// must be directly usable as a FileRequest's file_path without the
// peer knowing (or being able to reconstruct) the mount root.
func scanDirectory(mountID, root string) (wire.DirectoryIndex, uint64, uint64, error) {
	idx := wire.DirectoryIndex{MountID: mountID}
	var fileCount, totalSize uint64

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if depth > maxScanDepth {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			if len(idx.Entries) >= maxScanEntries {
				return nil
			}

			name := e.Name()
			if strings.HasPrefix(name, ".") && !hiddenAllowList[name] {
				continue
			}

			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.Mode()&os.ModeSymlink != 0 {
				continue
			}

			fullPath := filepath.Join(dir, name)

			if e.IsDir() {
				idx.Entries = append(idx.Entries, wire.DirectoryEntry{
					Path:     fullPath,
					IsDir:    true,
					Modified: info.ModTime(),
				})
				if err := walk(fullPath, depth+1); err != nil {
					return err
				}
				continue
			}

			idx.Entries = append(idx.Entries, wire.DirectoryEntry{
				Path:     fullPath,
				Size:     uint64(info.Size()),
				IsDir:    false,
				Modified: info.ModTime(),
			})
			fileCount++
			totalSize += uint64(info.Size())
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return idx, 0, 0, err
	}
	return idx, fileCount, totalSize, nil
}

// sortEntries orders directories before files, then lexically by name,
// per the Mount Manager directory-listing contract.
func sortEntries(entries []wire.DirectoryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Path < entries[j].Path
	})
}
