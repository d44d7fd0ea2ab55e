// Package config loads process configuration from a YAML file with
// environment overrides. The engine treats the result as static for the
// process lifetime.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	S3      S3Config      `yaml:"s3"`
	Policy  PolicyConfig  `yaml:"policy"`
	API     APIConfig     `yaml:"api"`
}

type StorageConfig struct {
	// Backend selects the blob store: "local" or "s3".
	Backend string `yaml:"backend"`
	// Path is the local backend's root directory.
	Path string `yaml:"path"`
	// Database is the SQLite metadata database path.
	Database string `yaml:"database"`
}

type S3Config struct {
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	Bucket         string `yaml:"bucket"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type PolicyConfig struct {
	AllowedMimeTypes  []string `yaml:"allowed_mime_types"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxSizeMB         int64    `yaml:"max_size_mb"`
	AllowDuplicates   bool     `yaml:"allow_duplicates"`
	VerifyOnRead      bool     `yaml:"verify_on_read"`
}

type APIConfig struct {
	Port string `yaml:"port"`
	// Key enables API-key auth when non-empty.
	Key string `yaml:"key"`
}

// Load reads the config at path, falling back to the CONFIG_PATH env var
// and then ./config.yaml. A missing file yields the defaults rather than
// an error; a present but malformed file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("config file not found, using defaults", "path", path)
	} else if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if key := os.Getenv("FILEDEPOT_API_KEY"); key != "" {
		cfg.API.Key = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default mirrors the policy the service ships with: common image and
// document types, a 50 MB cap, duplicates disallowed.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:  BackendLocal,
			Path:     "./storage",
			Database: "./filedepot.db",
		},
		Policy: PolicyConfig{
			AllowedMimeTypes:  []string{"image/jpeg", "image/png", "application/pdf"},
			AllowedExtensions: []string{"jpg", "jpeg", "png", "pdf"},
			MaxSizeMB:         50,
			AllowDuplicates:   false,
		},
		API: APIConfig{
			Port: "8080",
		},
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLocal, BackendS3:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendS3 && c.S3.Bucket == "" {
		return fmt.Errorf("s3 backend requires a bucket")
	}
	if c.Storage.Backend == BackendLocal && c.Storage.Path == "" {
		return fmt.Errorf("local backend requires a storage path")
	}
	if c.Storage.Database == "" {
		return fmt.Errorf("metadata database path must not be empty")
	}
	if c.Policy.MaxSizeMB <= 0 {
		return fmt.Errorf("max_size_mb must be positive, got %d", c.Policy.MaxSizeMB)
	}
	if len(c.Policy.AllowedMimeTypes) == 0 || len(c.Policy.AllowedExtensions) == 0 {
		return fmt.Errorf("policy allow-lists must not be empty")
	}
	return nil
}

// MaxSizeBytes converts the configured limit to bytes.
func (c *Config) MaxSizeBytes() int64 {
	return c.Policy.MaxSizeMB * 1024 * 1024
}
