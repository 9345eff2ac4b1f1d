package config

import (
	"github.com/pkg/errors"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDecode(); err != nil {
		return err
	}
	if err := c.validateFilesystem(); err != nil {
		return err
	}
	if c.Library.Enabled && c.Library.Path == "" {
		return errors.New("library.path must be set when the library is enabled")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateDecode() error {
	switch c.Decode.Backend {
	case BackendWebP, BackendDWebP:
	default:
		return errors.Errorf("decode.backend %q must be %q or %q", c.Decode.Backend, BackendWebP, BackendDWebP)
	}
	switch c.Decode.Format {
	case "png", "jpg":
	default:
		return errors.Errorf("decode.format %q must be png or jpg", c.Decode.Format)
	}
	if c.Decode.Backend == BackendDWebP && c.Decode.Format != "png" {
		return errors.New("decode.format must be png with the dwebp backend")
	}
	if c.Decode.Workers < 0 {
		return errors.New("decode.workers must not be negative")
	}
	if c.Decode.QueueSize < 0 {
		return errors.New("decode.queue_size must not be negative")
	}
	if c.Decode.JPEGQuality < 1 || c.Decode.JPEGQuality > 100 {
		return errors.New("decode.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateFilesystem() error {
	if c.Filesystem.RetryAttempts <= 0 {
		return errors.New("filesystem.retry_attempts must be positive")
	}
	if c.Filesystem.RetryDelayMS <= 0 {
		return errors.New("filesystem.retry_delay_ms must be positive")
	}
	if c.Filesystem.SolitaryFileLimit <= 0 {
		return errors.New("filesystem.solitary_file_limit must be positive")
	}
	return nil
}
