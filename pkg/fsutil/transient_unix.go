//go:build unix

package fsutil

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func isLockErrno(err error) bool {
	return errors.Is(err, unix.EBUSY) || errors.Is(err, unix.ETXTBSY)
}
