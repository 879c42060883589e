package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"

	apperrors "flickshare/internal/errors"
)

const createRetries = 5

// CreateDestination creates dir/name for writing without touching an
// existing file. On a name clash it retries with a random numeric suffix
// before the extension, e.g. clip-4821.mp4.
func CreateDestination(dir string, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.New(apperrors.ErrWrite, "create", dir, err)
	}
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	candidate := base
	for attempt := 0; attempt <= createRetries; attempt++ {
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, rand.Intn(10000), ext)
		}
		path := filepath.Join(dir, candidate)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, apperrors.New(apperrors.ErrWrite, "create", path, err)
		}
	}
	return nil, apperrors.New(apperrors.ErrWrite, "create", filepath.Join(dir, base),
		fmt.Errorf("exceeded %d retries for a free name", createRetries))
}
