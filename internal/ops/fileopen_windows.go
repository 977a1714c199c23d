//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/rutina/internal/errors"
)

// openNoFollow falls back to a plain open: Windows has no O_NOFOLLOW and
// ValidatePath already refused symlinks.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if os.IsNotExist(err) && flag&os.O_CREATE == 0 {
		return nil, errors.NewNotFound("file", path)
	}
	return f, err
}
