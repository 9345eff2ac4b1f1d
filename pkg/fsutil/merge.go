package fsutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Move renames src to dst. When dst is an existing directory and src is a
// directory too, the two are merged: every child of src is moved into dst
// individually and src is removed afterwards. File name clashes keep both
// files unless their contents are identical.
func (r *Retrier) Move(ctx context.Context, src, dst string) error {
	if src == dst {
		return nil
	}
	dstInfo, err := os.Stat(dst)
	if os.IsNotExist(err) {
		if err := r.MkdirAll(ctx, filepath.Dir(dst)); err != nil {
			return err
		}
		return r.Rename(ctx, src, dst)
	}
	if err != nil {
		return errors.WithStack(err)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return errors.WithStack(err)
	}
	if os.SameFile(srcInfo, dstInfo) {
		// case-only rename on a case-insensitive filesystem
		return r.Rename(ctx, src, dst)
	}
	if srcInfo.IsDir() && dstInfo.IsDir() {
		return r.MergeDir(ctx, src, dst)
	}
	return r.moveFile(ctx, src, dst)
}

// MergeDir moves the contents of src into the existing directory dst and
// removes src.
func (r *Retrier) MergeDir(ctx context.Context, src, dst string) error {
	log := logger.FromContext(ctx)

	children, err := os.ReadDir(src)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, child := range children {
		from := filepath.Join(src, child.Name())
		to := filepath.Join(dst, child.Name())
		if err := r.Move(ctx, from, to); err != nil {
			return err
		}
	}
	log.Debug("merged directory", logger.Data{"src": src, "dst": dst, "children": len(children)})
	return r.Remove(ctx, src)
}

func (r *Retrier) moveFile(ctx context.Context, src, dst string) error {
	same, err := SameContent(src, dst)
	if err != nil {
		return err
	}
	if same {
		return r.Remove(ctx, src)
	}
	return r.Rename(ctx, src, UniquePath(dst))
}

// UniquePath returns path, or "name (N).ext" for the first N that does not
// exist yet.
func UniquePath(path string) string {
	return UniquePathFunc(path, exists)
}

// UniquePathFunc is UniquePath with the caller deciding which paths are
// taken.
func UniquePathFunc(path string, taken func(string) bool) string {
	if !taken(path) {
		return path
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		ext = ""
	}
	stem := base[:len(base)-len(ext)]

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if !taken(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return !os.IsNotExist(err)
}
