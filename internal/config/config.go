package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// DataDirEnv overrides the default data directory when set.
const DataDirEnv = "ASSETREG_DATA_DIR"

// Paths contains directory configuration.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	ExtractionRoot string `toml:"extraction_root"`
}

// Registry contains catalog database settings.
type Registry struct {
	DatabaseFile  string `toml:"database_file"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	LockStripes   int    `toml:"lock_stripes"`
}

// Fingerprint contains perceptual hash settings.
type Fingerprint struct {
	// HashSize is the grid edge; grayscale fingerprints are HashSize² bits.
	HashSize int `toml:"hash_size"`
	// HighFreqFactor scales the DCT grid relative to HashSize.
	HighFreqFactor int `toml:"highfreq_factor"`
	// MaxImagePixels rejects oversized images before decoding.
	MaxImagePixels int `toml:"max_image_pixels"`
}

// Clustering contains duplicate detection defaults.
type Clustering struct {
	Kind        string `toml:"kind"`
	MaxDistance int    `toml:"max_distance"`
}

// Ingest contains batch ingestion settings.
type Ingest struct {
	Workers int `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the asset registry.
//
// Configuration sections by subsystem:
//   - Paths: data directory and extraction root
//   - Registry: SQLite catalog file and write contention settings
//   - Fingerprint: perceptual hash grid sizes and decode limits
//   - Clustering: default fingerprint kind and distance threshold
//   - Ingest: worker pool size
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Registry    Registry    `toml:"registry"`
	Fingerprint Fingerprint `toml:"fingerprint"`
	Clustering  Clustering  `toml:"clustering"`
	Ingest      Ingest      `toml:"ingest"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()
	if value, ok := os.LookupEnv(DataDirEnv); ok && strings.TrimSpace(value) != "" {
		cfg.Paths.DataDir = value
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigFile)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data directory and the database's parent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, filepath.Dir(c.DatabasePath())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath resolves the catalog database file. Relative names live under
// the data directory.
func (c *Config) DatabasePath() string {
	name := c.Registry.DatabaseFile
	if name == "" {
		name = defaultDatabaseFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.DataDir, name)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
