package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kerbaras/bukadown/pkg/buka"
	"github.com/kerbaras/bukadown/pkg/fsutil"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// copySlack is how much older a destination may be before it is refreshed.
const copySlack = time.Second

// CopyStats summarizes a CopyTree pass.
type CopyStats struct {
	Files   int
	Bytes   int64
	Skipped int
}

// Wanted reports whether a file takes part in a conversion: containers,
// view files and standalone descriptors.
func Wanted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == buka.Ext || ext == ViewExt || name == buka.DescriptorName
}

// CopyTree copies the wanted files below src into dst, keeping the relative
// layout. A destination file is only overwritten when the source is more
// than a second newer. dst is skipped when it lies inside src.
func CopyTree(ctx context.Context, src, dst string) (CopyStats, error) {
	log := logger.FromContext(ctx)
	var stats CopyStats

	src, dst = filepath.Clean(src), filepath.Clean(dst)
	absDst, _ := filepath.Abs(dst)

	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(path); abs == absDst {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !Wanted(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if existing, err := os.Stat(target); err == nil && info.ModTime().Sub(existing.ModTime()) <= copySlack {
			stats.Skipped++
			return nil
		}

		if err := fsutil.CopyFile(path, target); err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += info.Size()
		log.Debug("copied", logger.Data{"path": rel})
		return nil
	})
	if err != nil {
		return stats, errors.Wrapf(err, "copy %s to %s", src, dst)
	}
	return stats, nil
}
