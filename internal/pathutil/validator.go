// Package pathutil canonicalizes and validates filesystem paths against a
// configurable allow-list of roots, rejecting traversal, control bytes, and
// excessive depth or length.
package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
)

const (
	// MaxPathLength is the longest input accepted before canonicalization.
	MaxPathLength = 4096
	// MaxDepth is the maximum number of path components after normalization.
	MaxDepth = 32
)

// Validator canonicalizes paths and enforces an allow-list of roots.
// An empty allow-list accepts any path (subject to the other checks).
//
// Validator holds no mutable state and is safe for concurrent use.
type Validator struct {
	allowedRoots []string
}

// New builds a Validator restricted to the given allowed roots. Roots are
// canonicalized eagerly; a root that cannot be resolved is kept in its
// absolute, cleaned form so relative deployments (tests, not-yet-created
// directories) still work.
func New(allowedRoots ...string) *Validator {
	v := &Validator{allowedRoots: make([]string, 0, len(allowedRoots))}
	for _, root := range allowedRoots {
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		if clean, err := filepath.Abs(root); err == nil {
			v.allowedRoots = append(v.allowedRoots, filepath.Clean(clean))
		} else {
			v.allowedRoots = append(v.allowedRoots, filepath.Clean(root))
		}
	}
	return v
}

// ValidateAndNormalize canonicalizes input and rejects it per the rules
// documented on the package: length, control bytes, traversal escape,
// allow-list membership, and component depth.
func (v *Validator) ValidateAndNormalize(input string) (string, error) {
	if len(input) > MaxPathLength {
		return "", gwerrors.WithPath(gwerrors.KindValidation, "path exceeds maximum length", input)
	}
	for _, b := range []byte(input) {
		if b == 0 || b < 0x20 {
			return "", gwerrors.WithPath(gwerrors.KindValidation, "path contains control byte", input)
		}
	}

	normalized, err := normalize(input)
	if err != nil {
		return "", gwerrors.WithPath(gwerrors.KindValidation, err.Error(), input)
	}

	if depth(normalized) > MaxDepth {
		return "", gwerrors.WithPath(gwerrors.KindValidation, "path exceeds maximum depth", input)
	}

	canonical := resolveSymlinks(normalized)

	if len(v.allowedRoots) > 0 && !v.underAnyRoot(canonical) {
		return "", gwerrors.WithPath(gwerrors.KindAuthorization, "path outside allowed roots", input)
	}

	return canonical, nil
}

// normalize drops "." components and pops "..", failing if the stack
// underflows (a traversal that escapes the normalized prefix).
func normalize(input string) (string, error) {
	isAbs := filepath.IsAbs(input)
	volume := filepath.VolumeName(input)
	rest := strings.TrimPrefix(input, volume)
	rest = filepath.ToSlash(rest)

	parts := strings.Split(rest, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return "", errTraversal
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, part)
		}
	}

	joined := strings.Join(stack, string(filepath.Separator))
	if isAbs {
		return volume + string(filepath.Separator) + joined, nil
	}
	if volume != "" {
		return volume + joined, nil
	}
	return joined, nil
}

func depth(p string) int {
	clean := filepath.ToSlash(filepath.Clean(p))
	if clean == "." || clean == "/" {
		return 0
	}
	return len(strings.Split(strings.Trim(clean, "/"), "/"))
}

// resolveSymlinks canonicalizes via the OS when the target exists; for
// paths that don't yet exist it falls back to the lexically cleaned form.
func resolveSymlinks(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return filepath.Clean(resolved)
	}
	return filepath.Clean(p)
}

func (v *Validator) underAnyRoot(p string) bool {
	for _, root := range v.allowedRoots {
		if p == root {
			return true
		}
		if strings.HasPrefix(p, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

var errTraversal = errors.New("path traversal escapes normalized prefix")

// Exists reports whether the canonical path exists on disk, and if so
// whether it names a directory.
func Exists(canonical string) (isDir bool, err error) {
	info, err := os.Stat(canonical)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
