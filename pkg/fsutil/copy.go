package fsutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CopyFile streams src to dst, creating dst's directory and keeping the
// source modification time.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithStack(err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.WithStack(err)
	}
	if err := out.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Chtimes(dst, info.ModTime(), info.ModTime()))
}

// SameContent reports whether two regular files hold identical bytes.
func SameContent(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, errors.WithStack(err)
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, errors.WithStack(err)
	}
	if !ai.Mode().IsRegular() || !bi.Mode().IsRegular() || ai.Size() != bi.Size() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, errors.WithStack(err)
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, errors.WithStack(err)
	}
	defer fb.Close()

	bufA := make([]byte, 32*1024)
	bufB := make([]byte, 32*1024)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, errors.WithStack(errA)
		}
		if errB != nil {
			return false, errors.WithStack(errB)
		}
	}
}
