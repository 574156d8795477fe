package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Supported object store backends.
const (
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config holds all configuration for the result storage server.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	ResultStorage ResultStorageConfig `mapstructure:"result_storage"`
	GCS           GCSConfig           `mapstructure:"gcs"`
	S3            S3Config            `mapstructure:"s3"`
}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Mode         string `mapstructure:"mode"` // gin mode: debug, release or test
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ResultStorageConfig is what the storage plugin reads from the host context.
type ResultStorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BucketID  string `mapstructure:"bucket_id"`
	ProjectID string `mapstructure:"project_id"`
	// ExpirationSeconds of zero disables expiration.
	ExpirationSeconds int    `mapstructure:"expiration_seconds"`
	AutoWebP          bool   `mapstructure:"auto_webp"`
	MetricPrefix      string `mapstructure:"metric_prefix"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	// Endpoint points the client at an emulator such as fake-gcs-server.
	Endpoint string `mapstructure:"endpoint"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// LoadConfig reads configuration from config.yaml in path and from environment
// variables (result_storage.bucket_id -> RESULT_STORAGE_BUCKET_ID).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("server.address", ":8888")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_body_bytes", 32<<20)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("result_storage.backend", BackendGCS)
	v.SetDefault("result_storage.bucket_id", "")
	v.SetDefault("result_storage.project_id", "")
	v.SetDefault("result_storage.expiration_seconds", 0)
	v.SetDefault("result_storage.auto_webp", false)
	v.SetDefault("result_storage.metric_prefix", "gcs")
	v.SetDefault("gcs.credentials_file", "")
	v.SetDefault("gcs.endpoint", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.use_path_style", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file: defaults and environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the combination of values that the server cannot start without.
func (c *Config) Validate() error {
	rs := c.ResultStorage
	switch rs.Backend {
	case BackendGCS, BackendS3:
		if rs.BucketID == "" {
			return fmt.Errorf("result_storage.bucket_id is required for backend %q", rs.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown result_storage.backend %q (must be gcs, s3 or memory)", rs.Backend)
	}

	if rs.ExpirationSeconds < 0 {
		return fmt.Errorf("result_storage.expiration_seconds must not be negative, got %d", rs.ExpirationSeconds)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown server.mode %q (must be debug, release or test)", c.Server.Mode)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown logging.format %q (must be console or json)", c.Logging.Format)
	}
	return nil
}
