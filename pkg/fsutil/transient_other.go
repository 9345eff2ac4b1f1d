//go:build !unix && !windows

package fsutil

func isLockErrno(error) bool { return false }
