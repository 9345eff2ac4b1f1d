package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Decode configures the wrapped-image decode pool.
type Decode struct {
	Workers     int    `toml:"workers"`    // 0 = one per CPU
	QueueSize   int    `toml:"queue_size"` // 0 = twice the workers
	Backend     string `toml:"backend"`    // "webp" (in process) or "dwebp"
	DWebPPath   string `toml:"dwebp_path"`
	Format      string `toml:"format"` // "png" or "jpg"
	JPEGQuality int    `toml:"jpeg_quality"`
}

// Filesystem configures the retry policy for deletes and renames.
type Filesystem struct {
	RetryAttempts     int `toml:"retry_attempts"`
	RetryDelayMS      int `toml:"retry_delay_ms"`
	SolitaryFileLimit int `toml:"solitary_file_limit"`
}

// Library configures the catalog of organized comics.
type Library struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Metadata points at an optional app database to import descriptors from.
type Metadata struct {
	SQLitePath string `toml:"sqlite_path"`
}

// Logging configures log verbosity.
type Logging struct {
	Level string `toml:"level"`
}

// Config holds every setting of bukadown.
type Config struct {
	Decode     Decode     `toml:"decode"`
	Filesystem Filesystem `toml:"filesystem"`
	Library    Library    `toml:"library"`
	Metadata   Metadata   `toml:"metadata"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the user-level configuration file location.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve config directory")
	}
	return filepath.Join(dir, "bukadown", "config.toml"), nil
}

// Load reads the configuration at path, or the default location when path
// is empty. A missing file yields the defaults. It returns the resolved path
// and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved := path
	if resolved == "" {
		var err error
		if resolved, err = DefaultConfigPath(); err != nil {
			return nil, "", false, err
		}
	}
	resolved, err := expandPath(resolved)
	if err != nil {
		return nil, "", false, err
	}

	exists := true
	file, err := os.Open(resolved)
	switch {
	case os.IsNotExist(err):
		exists = false
	case err != nil:
		return nil, "", false, errors.Wrap(err, "open config")
	default:
		defer file.Close()
		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, errors.Wrap(err, "parse config")
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// Write stores cfg as TOML at path, creating parent directories.
func Write(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithStack(err)
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.WithStack(os.WriteFile(path, b, 0644))
}

func (c *Config) normalize() error {
	c.Decode.Backend = strings.ToLower(strings.TrimSpace(c.Decode.Backend))
	c.Decode.Format = strings.ToLower(strings.TrimSpace(c.Decode.Format))
	if c.Decode.Format == "jpeg" {
		c.Decode.Format = "jpg"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	var err error
	if c.Library.Path, err = expandPath(c.Library.Path); err != nil {
		return errors.Wrap(err, "library.path")
	}
	if c.Metadata.SQLitePath, err = expandPath(c.Metadata.SQLitePath); err != nil {
		return errors.Wrap(err, "metadata.sqlite_path")
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", errors.Wrapf(err, "resolve absolute path for %q", pathValue)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules to the CLI.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
