// Package config loads service settings from defaults, an optional YAML
// file, a .env file and WEDDINGHUB_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "WEDDINGHUB"

type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Media      MediaConfig      `mapstructure:"media" yaml:"media"`
	Submission SubmissionConfig `mapstructure:"submission" yaml:"submission"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Janitor    JanitorConfig    `mapstructure:"janitor" yaml:"janitor"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr" yaml:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr" yaml:"grpc_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Dev bool `mapstructure:"dev" yaml:"dev"`
}

type StorageConfig struct {
	Path        string `mapstructure:"path" yaml:"path"`
	StagingPath string `mapstructure:"staging_path" yaml:"staging_path"`
}

type DatabaseConfig struct {
	Driver        string   `mapstructure:"driver" yaml:"driver"`
	URL           string   `mapstructure:"url" yaml:"url"`
	EtcdEndpoints []string `mapstructure:"etcd_endpoints" yaml:"etcd_endpoints"`
}

type MediaConfig struct {
	MaxBytes          int64  `mapstructure:"max_bytes" yaml:"max_bytes"`
	VerifyContent     bool   `mapstructure:"verify_content" yaml:"verify_content"`
	FFProbe           string `mapstructure:"ffprobe" yaml:"ffprobe"` // empty disables duration probing
	ThumbnailMaxWidth int    `mapstructure:"thumbnail_max_width" yaml:"thumbnail_max_width"`
}

type SubmissionConfig struct {
	StageTimeout        time.Duration `mapstructure:"stage_timeout" yaml:"stage_timeout"`
	MaxAttempts         int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	CompensationTimeout time.Duration `mapstructure:"compensation_timeout" yaml:"compensation_timeout"`
	MaxInFlight         int64         `mapstructure:"max_inflight" yaml:"max_inflight"`
}

type AuthConfig struct {
	SessionTTL  time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	MaxSessions int           `mapstructure:"max_sessions" yaml:"max_sessions"`
}

type JanitorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	DraftIdleTTL time.Duration `mapstructure:"draft_idle_ttl" yaml:"draft_idle_ttl"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

var drivers = []string{"memory", "sqlite", "postgres", "etcd"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("log.dev", false)
	v.SetDefault("storage.path", "./data/files")
	v.SetDefault("storage.staging_path", "./data/staging")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "./data/weddinghub.db")
	v.SetDefault("database.etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("media.max_bytes", int64(1<<30))
	v.SetDefault("media.verify_content", true)
	v.SetDefault("media.ffprobe", "ffprobe")
	v.SetDefault("media.thumbnail_max_width", 1280)
	v.SetDefault("submission.stage_timeout", 10*time.Minute)
	v.SetDefault("submission.max_attempts", 1)
	v.SetDefault("submission.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("submission.compensation_timeout", 30*time.Second)
	v.SetDefault("submission.max_inflight", 16)
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.max_sessions", 10000)
	v.SetDefault("janitor.poll_interval", 30*time.Second)
	v.SetDefault("janitor.max_attempts", 10)
	v.SetDefault("janitor.draft_idle_ttl", 24*time.Hour)
	v.SetDefault("tracing.enabled", false)
}

// Load reads the configuration. path selects a config file explicitly;
// when empty, config.yaml in the working directory is used if present.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(drivers, c.Database.Driver) {
		errs = append(errs, fmt.Errorf("database.driver %q must be one of %s", c.Database.Driver, strings.Join(drivers, ", ")))
	}
	if c.Database.Driver == "etcd" && len(c.Database.EtcdEndpoints) == 0 {
		errs = append(errs, errors.New("database.etcd_endpoints is required for the etcd driver"))
	}
	if c.Media.MaxBytes <= 0 {
		errs = append(errs, errors.New("media.max_bytes must be positive"))
	}
	if c.Submission.MaxAttempts < 1 {
		errs = append(errs, errors.New("submission.max_attempts must be at least 1"))
	}
	if c.Submission.StageTimeout <= 0 {
		errs = append(errs, errors.New("submission.stage_timeout must be positive"))
	}
	if c.Submission.MaxInFlight < 0 {
		errs = append(errs, errors.New("submission.max_inflight must not be negative"))
	}
	if c.Storage.Path == "" || c.Storage.StagingPath == "" {
		errs = append(errs, errors.New("storage.path and storage.staging_path are required"))
	}
	return errors.Join(errs...)
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
