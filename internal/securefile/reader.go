// Package securefile reads whole files from a whitelisted set of roots,
// enforcing a maximum size cap. It is used only for control-plane reads;
// streaming large payloads is out of scope (see mount.Manager for the
// token-gated path used by file transfer).
package securefile

import (
	"os"

	"github.com/VacuolePaoo/gatewaygui/internal/gwerrors"
	"github.com/VacuolePaoo/gatewaygui/internal/pathutil"
)

// DefaultMaxSize is the default file-read size cap (10 MiB, per §5).
const DefaultMaxSize = 10 * 1024 * 1024

// Reader validates paths against a whitelist before reading them.
type Reader struct {
	validator *pathutil.Validator
	maxSize   int64
}

// New builds a Reader restricted to allowedRoots with the given size cap.
// A maxSize of 0 uses DefaultMaxSize.
func New(maxSize int64, allowedRoots ...string) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Reader{validator: pathutil.New(allowedRoots...), maxSize: maxSize}
}

// Read validates path, requires it to be an existing regular file within
// the size cap, and returns its full contents.
func (r *Reader) Read(path string) ([]byte, error) {
	canonical, err := r.validator.ValidateAndNormalize(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(canonical)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gwerrors.WithPath(gwerrors.KindNotFound, "file does not exist", canonical)
		}
		return nil, gwerrors.WithPath(gwerrors.KindValidation, err.Error(), canonical)
	}
	if !info.Mode().IsRegular() {
		return nil, gwerrors.WithPath(gwerrors.KindValidation, "not a regular file", canonical)
	}
	if info.Size() > r.maxSize {
		return nil, gwerrors.WithPath(gwerrors.KindResource, "file exceeds size cap", canonical)
	}

	data, err := os.ReadFile(canonical)
	if err != nil {
		return nil, gwerrors.WithPath(gwerrors.KindValidation, err.Error(), canonical)
	}
	return data, nil
}
