//go:build windows

package fsutil

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

func isLockErrno(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, windows.ERROR_ACCESS_DENIED)
}
