package config

import (
	"errors"
	"fmt"

	"assetreg/internal/phash"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateFingerprint(); err != nil {
		return err
	}
	if err := c.validateClustering(); err != nil {
		return err
	}
	if c.Ingest.Workers < 1 {
		return errors.New("ingest.workers must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateRegistry() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Registry.BusyTimeoutMS < 0 {
		return errors.New("registry.busy_timeout_ms must not be negative")
	}
	if c.Registry.LockStripes < 1 || c.Registry.LockStripes > 4096 {
		return fmt.Errorf("registry.lock_stripes must be between 1 and 4096, got %d", c.Registry.LockStripes)
	}
	return nil
}

func (c *Config) validateFingerprint() error {
	size := c.Fingerprint.HashSize
	if size < 4 || size > 32 || size%4 != 0 {
		return fmt.Errorf("fingerprint.hash_size must be a multiple of 4 between 4 and 32, got %d", size)
	}
	if c.Fingerprint.HighFreqFactor < 1 || c.Fingerprint.HighFreqFactor > 8 {
		return fmt.Errorf("fingerprint.highfreq_factor must be between 1 and 8, got %d", c.Fingerprint.HighFreqFactor)
	}
	if c.Fingerprint.MaxImagePixels < 0 {
		return errors.New("fingerprint.max_image_pixels must not be negative")
	}
	return nil
}

func (c *Config) validateClustering() error {
	kind, err := phash.ParseKind(c.Clustering.Kind)
	if err != nil {
		return fmt.Errorf("clustering.kind: %w", err)
	}
	bits := c.Fingerprint.HashSize * c.Fingerprint.HashSize
	if kind.IsColor() {
		bits *= 3
	}
	if c.Clustering.MaxDistance < 0 || c.Clustering.MaxDistance > bits {
		return fmt.Errorf("clustering.max_distance must be between 0 and %d, got %d", bits, c.Clustering.MaxDistance)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// FingerprintOptions returns the hasher settings.
func (c *Config) FingerprintOptions() phash.Options {
	return phash.Options{
		HashSize:       c.Fingerprint.HashSize,
		HighFreqFactor: c.Fingerprint.HighFreqFactor,
		MaxPixels:      c.Fingerprint.MaxImagePixels,
	}
}
