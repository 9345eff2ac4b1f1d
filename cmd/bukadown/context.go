package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/kerbaras/bukadown/pkg/config"
	"github.com/kerbaras/bukadown/pkg/services"
	"github.com/mattn/go-isatty"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

// commandContext carries what every command needs: the loaded
// configuration, a logger and a controller built from both.
type commandContext struct {
	configFlag string
	verbose    bool

	cfg  *config.Config
	log  logger.Logger
	ctrl *services.Controller
}

// load reads the configuration and builds the controller. quiet lowers
// logging to errors so a full screen view is not torn by log lines.
func (c *commandContext) load(quiet bool) error {
	cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
	if err != nil {
		return err
	}
	c.cfg = cfg

	level := cfg.Logging.Level
	switch {
	case c.verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	c.log = logger.NewWithLevel(level)
	c.ctrl = services.NewController(cfg)
	return nil
}

// context returns a context carrying the logger that is canceled on
// SIGINT or SIGTERM.
func (c *commandContext) context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.log.WithContext(context.Background()))
	graceful := signals.Setup()
	go func() {
		select {
		case <-graceful:
			c.log.Warn("interrupted, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (c *commandContext) close() {
	if c.ctrl == nil {
		return
	}
	if err := c.ctrl.Close(); err != nil {
		c.log.Err(err).Warn("failed to close library")
	}
}

// interactive reports whether stdout is a terminal a full screen view can
// be drawn on.
func interactive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
