// Package config holds the process-wide configuration for the ingestion
// pipeline. Values are layered: built-in defaults, then an optional TOML
// file, then environment variables. Nothing is reconfigurable mid-run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Database selects the SQL backend for the detection and message stores.
type Database struct {
	Driver string `toml:"driver"` // "postgres" or "sqlite"
	DSN    string `toml:"dsn"`
}

// Detector configures the external detection service.
type Detector struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // per-image inference timeout
	MaxUploadDim   int    `toml:"max_upload_dim"`  // images larger than this are downscaled before upload
}

// Config is the full configuration surface, supplied at process start.
type Config struct {
	CorpusRoot          string   `toml:"corpus_root"`
	Channels            []string `toml:"channels"` // known-channel allow-list
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	ModelVersion        string   `toml:"model_version"`
	Workers             int      `toml:"workers"`
	ManifestPath        string   `toml:"manifest_path"` // optional scraper manifest
	MetricsAddr         string   `toml:"metrics_addr"`  // empty disables the scrape endpoint
	LogLevel            string   `toml:"log_level"`
	Database            Database `toml:"database"`
	Detector            Detector `toml:"detector"`
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty and no default file exists), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. A set but
// unparsable value is an error, never a silent fallback to the default.
func (c *Config) applyEnv() error {
	setString(&c.CorpusRoot, "CORPUS_ROOT")
	setString(&c.ModelVersion, "MODEL_VERSION")
	setString(&c.ManifestPath, "MANIFEST_PATH")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Detector.URL, "DETECTOR_URL")
	if err := setInt(&c.Workers, "WORKERS"); err != nil {
		return err
	}
	if err := setInt(&c.Detector.TimeoutSeconds, "DETECT_TIMEOUT_SECONDS"); err != nil {
		return err
	}
	if err := setInt(&c.Detector.MaxUploadDim, "DETECTOR_MAX_UPLOAD_DIM"); err != nil {
		return err
	}
	if err := setFloat(&c.ConfidenceThreshold, "CONFIDENCE_THRESHOLD"); err != nil {
		return err
	}

	if v := os.Getenv("CHANNELS"); v != "" {
		c.Channels = c.Channels[:0]
		for _, ch := range strings.Split(v, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				c.Channels = append(c.Channels, ch)
			}
		}
	}
	return nil
}

// Validate checks invariants that would otherwise surface mid-run.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %g", c.ConfidenceThreshold)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q (want postgres or sqlite)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Detector.TimeoutSeconds < 0 {
		return fmt.Errorf("detector timeout_seconds must not be negative, got %d", c.Detector.TimeoutSeconds)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = f
	return nil
}
