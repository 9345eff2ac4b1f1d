package decode

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"golang.org/x/image/webp"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpg"

	DefaultJPEGQuality = 90
)

// ImageDecoder decodes wrapped payloads in process. WebP is the format the
// reader app writes; PNG and JPEG payloads are accepted and re-encoded so the
// output extension is always Ext().
type ImageDecoder struct {
	Format  string // FormatPNG or FormatJPEG
	Quality int    // JPEG quality, 0 = DefaultJPEGQuality
}

// NewImageDecoder returns a decoder writing format files.
func NewImageDecoder(format string, quality int) *ImageDecoder {
	return &ImageDecoder{Format: format, Quality: quality}
}

func (d *ImageDecoder) Ext() string {
	if d.Format == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

func (d *ImageDecoder) Decode(ctx context.Context, payload []byte, dest string) error {
	img, err := decodeImage(payload)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	return d.write(img, dest+d.Ext())
}

func decodeImage(payload []byte) (image.Image, error) {
	mt := mimetype.Detect(payload)
	r := bytes.NewReader(payload)

	var (
		img image.Image
		err error
	)
	switch {
	case mt.Is("image/webp"):
		img, err = webp.Decode(r)
	case mt.Is("image/png"):
		img, err = png.Decode(r)
	case mt.Is("image/jpeg"):
		img, err = jpeg.Decode(r)
	default:
		return nil, errors.Errorf("unsupported payload type %s", mt.String())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s payload", mt.Extension())
	}
	return img, nil
}

// write encodes img next to path and renames it into place, so a failed
// encode never leaves a truncated image.
func (d *ImageDecoder) write(img image.Image, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".decode-*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if d.Format == FormatJPEG {
		quality := d.Quality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		err = jpeg.Encode(tmp, img, &jpeg.Options{Quality: quality})
	} else {
		err = png.Encode(tmp, img)
	}
	if err != nil {
		tmp.Close()
		return errors.Wrap(err, "encode image")
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp.Name(), path))
}
