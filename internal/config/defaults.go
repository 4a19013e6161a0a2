package config

import "runtime"

const (
	defaultConfigPath     = "~/.config/assetreg/config.toml"
	projectConfigFile     = "assetreg.toml"
	defaultDataDir        = "~/.local/share/assetreg"
	defaultDatabaseFile   = "registry.db"
	defaultBusyTimeoutMS  = 5000
	defaultLockStripes    = 64
	defaultHashSize       = 8
	defaultHighFreqFactor = 4
	defaultMaxImagePixels = 64 * 1024 * 1024
	defaultClusterKind    = "gray_perceptual"
	defaultMaxDistance    = 4
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Registry: Registry{
			DatabaseFile:  defaultDatabaseFile,
			BusyTimeoutMS: defaultBusyTimeoutMS,
			LockStripes:   defaultLockStripes,
		},
		Fingerprint: Fingerprint{
			HashSize:       defaultHashSize,
			HighFreqFactor: defaultHighFreqFactor,
			MaxImagePixels: defaultMaxImagePixels,
		},
		Clustering: Clustering{
			Kind:        defaultClusterKind,
			MaxDistance: defaultMaxDistance,
		},
		Ingest: Ingest{
			Workers: defaultWorkers(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultWorkers() int {
	return max(runtime.NumCPU(), 1)
}
