package config

import (
	"fmt"
	"strings"

	"assetreg/internal/phash"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRegistry()
	c.normalizeFingerprint()
	c.normalizeClustering()
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = defaultWorkers()
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExtractionRoot) != "" {
		if c.Paths.ExtractionRoot, err = expandPath(c.Paths.ExtractionRoot); err != nil {
			return fmt.Errorf("paths.extraction_root: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeRegistry() {
	c.Registry.DatabaseFile = strings.TrimSpace(c.Registry.DatabaseFile)
	if c.Registry.DatabaseFile == "" {
		c.Registry.DatabaseFile = defaultDatabaseFile
	}
	if c.Registry.BusyTimeoutMS == 0 {
		c.Registry.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if c.Registry.LockStripes == 0 {
		c.Registry.LockStripes = defaultLockStripes
	}
}

func (c *Config) normalizeFingerprint() {
	if c.Fingerprint.HashSize == 0 {
		c.Fingerprint.HashSize = defaultHashSize
	}
	if c.Fingerprint.HighFreqFactor == 0 {
		c.Fingerprint.HighFreqFactor = defaultHighFreqFactor
	}
	if c.Fingerprint.MaxImagePixels == 0 {
		c.Fingerprint.MaxImagePixels = defaultMaxImagePixels
	}
}

func (c *Config) normalizeClustering() {
	c.Clustering.Kind = strings.TrimSpace(c.Clustering.Kind)
	if c.Clustering.Kind == "" {
		c.Clustering.Kind = defaultClusterKind
	}
	if kind, err := phash.ParseKind(c.Clustering.Kind); err == nil {
		c.Clustering.Kind = string(kind)
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
