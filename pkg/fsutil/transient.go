package fsutil

import (
	"os"

	"github.com/pkg/errors"
)

// IsTransient reports whether err is a lock or permission failure that may
// clear on its own, such as a scanner holding a freshly written file.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	return isLockErrno(err)
}
