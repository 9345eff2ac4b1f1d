package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := Load(path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, BackendWebP, cfg.Decode.Backend)
	assert.Equal(t, "png", cfg.Decode.Format)
	assert.Equal(t, 90, cfg.Decode.JPEGQuality)
	assert.Equal(t, 5, cfg.Filesystem.RetryAttempts)
	assert.Equal(t, 100, cfg.Filesystem.RetryDelayMS)
	assert.Equal(t, 4, cfg.Filesystem.SolitaryFileLimit)
	assert.True(t, cfg.Library.Enabled)
	assert.True(t, filepath.IsAbs(cfg.Library.Path))
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[decode]
workers = 3
backend = "DWebP"
dwebp_path = "/opt/bin/dwebp"

[filesystem]
retry_attempts = 2

[library]
enabled = false

[metadata]
sqlite_path = "` + filepath.ToSlash(filepath.Join(dir, "app.db")) + `"

[logging]
level = "Debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, _, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 3, cfg.Decode.Workers)
	assert.Equal(t, BackendDWebP, cfg.Decode.Backend)
	assert.Equal(t, "/opt/bin/dwebp", cfg.Decode.DWebPPath)
	assert.Equal(t, 2, cfg.Filesystem.RetryAttempts)
	assert.Equal(t, 100, cfg.Filesystem.RetryDelayMS)
	assert.False(t, cfg.Library.Enabled)
	assert.Equal(t, filepath.Join(dir, "app.db"), cfg.Metadata.SQLitePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[decode]\nthreads = 2\n"), 0644))

	_, _, _, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[decode]\nbackend = \"magick\"\n"), 0644))

	_, _, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode.backend")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"jpeg format", func(c *Config) { c.Decode.Format = "jpg" }, ""},
		{"bad format", func(c *Config) { c.Decode.Format = "gif" }, "decode.format"},
		{"dwebp needs png", func(c *Config) { c.Decode.Backend = BackendDWebP; c.Decode.Format = "jpg" }, "dwebp backend"},
		{"negative workers", func(c *Config) { c.Decode.Workers = -1 }, "decode.workers"},
		{"quality range", func(c *Config) { c.Decode.JPEGQuality = 101 }, "jpeg_quality"},
		{"zero attempts", func(c *Config) { c.Filesystem.RetryAttempts = 0 }, "retry_attempts"},
		{"zero delay", func(c *Config) { c.Filesystem.RetryDelayMS = 0 }, "retry_delay_ms"},
		{"zero solitary", func(c *Config) { c.Filesystem.SolitaryFileLimit = 0 }, "solitary_file_limit"},
		{"library without path", func(c *Config) { c.Library.Path = "" }, "library.path"},
		{"disabled library without path", func(c *Config) { c.Library.Enabled = false; c.Library.Path = "" }, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Decode.Format = "jpg"
	cfg.Decode.JPEGQuality = 75
	require.NoError(t, Write(&cfg, path))

	loaded, _, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "jpg", loaded.Decode.Format)
	assert.Equal(t, 75, loaded.Decode.JPEGQuality)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/comics")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "comics"), got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ExpandPath("relative/dir")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
