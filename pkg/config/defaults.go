package config

const (
	defaultBackend           = BackendWebP
	defaultFormat            = "png"
	defaultJPEGQuality       = 90
	defaultDWebPPath         = "dwebp"
	defaultRetryAttempts     = 5
	defaultRetryDelayMS      = 100
	defaultSolitaryFileLimit = 4
	defaultLibraryPath       = "~/.local/share/bukadown/library.duckdb"
	defaultLogLevel          = "info"
)

const (
	BackendWebP  = "webp"
	BackendDWebP = "dwebp"
)

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		Decode: Decode{
			Backend:     defaultBackend,
			DWebPPath:   defaultDWebPPath,
			Format:      defaultFormat,
			JPEGQuality: defaultJPEGQuality,
		},
		Filesystem: Filesystem{
			RetryAttempts:     defaultRetryAttempts,
			RetryDelayMS:      defaultRetryDelayMS,
			SolitaryFileLimit: defaultSolitaryFileLimit,
		},
		Library: Library{
			Enabled: true,
			Path:    defaultLibraryPath,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
