package integrations

import (
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kerbaras/bukadown/pkg/fsutil"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DefaultJPEGQuality matches the quality the reader app's pages are
// re-encoded with.
const DefaultJPEGQuality = 90

// JPEGOptions configures the PNG to JPEG pass.
type JPEGOptions struct {
	Quality   int
	MaxWidth  int // 0 keeps the width
	MaxHeight int // 0 keeps the height
	Grayscale bool
	KeepPNG   bool
	Workers   int
}

// WithProfile fits pages to a device screen.
func (o JPEGOptions) WithProfile(p Profile) JPEGOptions {
	o.MaxWidth, o.MaxHeight = p.Width, p.Height
	o.Grayscale = o.Grayscale || p.Grayscale
	return o
}

// JPEGStats summarizes a conversion pass.
type JPEGStats struct {
	Converted int
	Failed    int
	Resized   int
}

// JPEGConverter re-encodes decoded PNG pages as JPEG.
type JPEGConverter struct {
	opts    JPEGOptions
	retrier *fsutil.Retrier
}

func NewJPEGConverter(opts JPEGOptions, r *fsutil.Retrier) *JPEGConverter {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultJPEGQuality
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if r == nil {
		r = fsutil.Default
	}
	return &JPEGConverter{opts: opts, retrier: r}
}

// Process converts every PNG below dir.
func (c *JPEGConverter) Process(ctx context.Context, dir string) error {
	stats, err := c.ConvertTree(ctx, dir)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return errors.Errorf("%d of %d pages could not be converted", stats.Failed, stats.Failed+stats.Converted)
	}
	return nil
}

// ConvertTree converts every PNG below root. A page that fails is logged and
// counted, the others are still converted.
func (c *JPEGConverter) ConvertTree(ctx context.Context, root string) (JPEGStats, error) {
	log := logger.FromContext(ctx)

	var pages []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".png") {
			pages = append(pages, path)
		}
		return nil
	})
	if err != nil {
		return JPEGStats{}, errors.Wrapf(err, "scan %s", root)
	}

	var (
		mu    sync.Mutex
		stats JPEGStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for _, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resized, err := c.ConvertFile(gctx, page)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				log.Err(err).Warn("jpeg conversion failed", logger.Data{"path": page})
				return nil
			}
			stats.Converted++
			if resized {
				stats.Resized++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, errors.WithStack(err)
	}

	log.Info("converted pages to jpeg", logger.Data{
		"root":      root,
		"converted": stats.Converted,
		"failed":    stats.Failed,
		"resized":   stats.Resized,
	})
	return stats, nil
}

// ConvertFile writes path as a JPEG next to it and removes the PNG unless
// KeepPNG is set. It reports whether the page was downscaled.
func (c *JPEGConverter) ConvertFile(ctx context.Context, path string) (bool, error) {
	img, err := readPNG(path)
	if err != nil {
		return false, err
	}

	resized := false
	b := img.Bounds()
	if w, h := Fit(b.Dx(), b.Dy(), c.opts.MaxWidth, c.opts.MaxHeight); w != b.Dx() || h != b.Dy() {
		img = resize(img, w, h)
		resized = true
	}
	if c.opts.Grayscale {
		img = grayscale(img)
	}

	target := strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg"
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jpeg-*")
	if err != nil {
		return false, errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: c.opts.Quality}); err != nil {
		tmp.Close()
		return false, errors.Wrapf(err, "encode %s", target)
	}
	if err := tmp.Close(); err != nil {
		return false, errors.WithStack(err)
	}
	if err := c.retrier.Rename(ctx, tmp.Name(), target); err != nil {
		return false, err
	}
	if c.opts.KeepPNG {
		return resized, nil
	}
	return resized, c.retrier.Remove(ctx, path)
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// resize scales img to width x height with CatmullRom.
func resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func grayscale(img image.Image) image.Image {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}
