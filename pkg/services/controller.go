package services

import (
	"context"
	"time"

	"github.com/kerbaras/bukadown/pkg/config"
	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/kerbaras/bukadown/pkg/decode"
	"github.com/kerbaras/bukadown/pkg/fsutil"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Controller builds the pipeline pieces from a configuration and owns the
// library connection shared by the commands.
type Controller struct {
	cfg  *config.Config
	repo *data.Repository
}

func NewController(cfg *config.Config) *Controller {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return &Controller{cfg: cfg}
}

// Config returns the configuration the controller was built from.
func (c *Controller) Config() *config.Config {
	return c.cfg
}

// Decoder returns the decode primitive selected by the configuration.
func (c *Controller) Decoder() (decode.Decoder, error) {
	switch c.cfg.Decode.Backend {
	case config.BackendDWebP:
		dec := decode.NewExecDecoder(c.cfg.Decode.DWebPPath)
		if err := dec.Available(); err != nil {
			return nil, err
		}
		return dec, nil
	default:
		return decode.NewImageDecoder(c.cfg.Decode.Format, c.cfg.Decode.JPEGQuality), nil
	}
}

// Retrier returns the filesystem retry policy.
func (c *Controller) Retrier() *fsutil.Retrier {
	return &fsutil.Retrier{
		Attempts: c.cfg.Filesystem.RetryAttempts,
		Delay:    time.Duration(c.cfg.Filesystem.RetryDelayMS) * time.Millisecond,
	}
}

// Library opens the library on first use. It returns nil without error
// when the library is disabled.
func (c *Controller) Library() (*data.Repository, error) {
	if !c.cfg.Library.Enabled {
		return nil, nil
	}
	if c.repo == nil {
		repo, err := data.NewDuckDBRepository(c.cfg.Library.Path)
		if err != nil {
			return nil, err
		}
		c.repo = repo
	}
	return c.repo, nil
}

// Metadata reads the app database named by the configuration, if any.
func (c *Controller) Metadata(ctx context.Context) ([]*data.ChapterMetadata, error) {
	if c.cfg.Metadata.SQLitePath == "" {
		return nil, nil
	}
	comics, err := data.ImportSQLite(ctx, c.cfg.Metadata.SQLitePath)
	if err != nil {
		return nil, errors.Wrap(err, "import metadata")
	}
	logger.FromContext(ctx).Info("imported metadata", logger.Data{
		"path":   c.cfg.Metadata.SQLitePath,
		"comics": len(comics),
	})
	return comics, nil
}

// NewConverter wires a converter from the configuration.
func (c *Controller) NewConverter(ctx context.Context) (*Converter, error) {
	dec, err := c.Decoder()
	if err != nil {
		return nil, err
	}
	metadata, err := c.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	opts := Options{
		Decode: decode.Options{
			Workers:   c.cfg.Decode.Workers,
			QueueSize: c.cfg.Decode.QueueSize,
		},
		Decoder:       dec,
		Retrier:       c.Retrier(),
		SolitaryLimit: c.cfg.Filesystem.SolitaryFileLimit,
		Metadata:      metadata,
	}
	lib, err := c.Library()
	if err != nil {
		return nil, err
	}
	if lib != nil {
		opts.Library = lib
	}
	return NewConverter(opts), nil
}

// Import copies the comics and chapters of an app database into the
// library and returns how many of each were read.
func (c *Controller) Import(ctx context.Context, path string) (int, int, error) {
	comics, err := data.ImportSQLite(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	reg := data.NewRegistry()
	chapters := 0
	for _, md := range comics {
		reg.Merge(md)
		chapters += len(md.Chapters)
	}

	lib, err := c.Library()
	if err != nil {
		return 0, 0, err
	}
	if lib == nil {
		return 0, 0, errors.New("library is disabled")
	}
	if err := lib.SaveRegistry(reg); err != nil {
		return 0, 0, err
	}
	logger.FromContext(ctx).Info("imported library", logger.Data{"path": path, "comics": len(comics), "chapters": chapters})
	return len(comics), chapters, nil
}

// Close releases the library connection.
func (c *Controller) Close() error {
	if c.repo == nil {
		return nil
	}
	err := c.repo.Close()
	c.repo = nil
	return err
}
