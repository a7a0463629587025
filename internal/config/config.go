// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "DIAGNOSIS_SERVICE"

// Config holds all configuration for the service
type Config struct {
	// Server configuration
	Port        int `mapstructure:"port"`
	GRPCPort    int `mapstructure:"grpc_port"`
	MetricsPort int `mapstructure:"metrics_port"`

	// Model artifact
	Model           string `mapstructure:"model"`
	ModelFormat     string `mapstructure:"model_format"`
	ModelName       string `mapstructure:"model_name"`
	ONNXLibrary     string `mapstructure:"onnx_library"`
	ONNXInput       string `mapstructure:"onnx_input"`
	ONNXLabelOutput string `mapstructure:"onnx_label_output"`
	ONNXProbaOutput string `mapstructure:"onnx_proba_output"`
	NumClasses      int    `mapstructure:"num_classes"`

	// Prediction cache
	CacheBackend string        `mapstructure:"cache_backend"`
	CacheSize    int           `mapstructure:"cache_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	Redis        string        `mapstructure:"redis"`

	// Audit log
	AuditDB            string        `mapstructure:"audit_db"`
	AuditRetention     time.Duration `mapstructure:"audit_retention"`
	AuditPruneSchedule string        `mapstructure:"audit_prune_schedule"`

	// OpenTelemetry configuration
	OTELEnabled  bool   `mapstructure:"otel_enabled"`
	OTELEndpoint string `mapstructure:"otel_endpoint"`

	// Logging
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 5000)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("metrics_port", 9100)

	v.SetDefault("model", "model.onnx")
	v.SetDefault("model_format", "")
	v.SetDefault("model_name", "Cancer-RandomForest")
	v.SetDefault("onnx_library", "")
	v.SetDefault("onnx_input", "float_input")
	v.SetDefault("onnx_label_output", "label")
	v.SetDefault("onnx_proba_output", "probabilities")
	v.SetDefault("num_classes", 2)

	v.SetDefault("cache_backend", CacheMemory)
	v.SetDefault("cache_size", 4096)
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("redis", "localhost:6379")

	v.SetDefault("audit_db", "")
	v.SetDefault("audit_retention", 30*24*time.Hour)
	v.SetDefault("audit_prune_schedule", "@hourly")

	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_endpoint", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age_days", 28)
}

// Load loads configuration from flags, environment variables, and an optional config file.
// Priority (highest to lowest): flags > env vars > config file > defaults.
// Flags are matched to keys by replacing "-" with "_"; flags may be nil.
// An empty configPath searches the default locations and tolerates a missing file.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		// Read specific config file
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/diagnosis-service/")
		v.AddConfigPath("$HOME/.diagnosis-service")

		// Read config file if present (ignore error if not found)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	if flags != nil {
		known := viper.New()
		setDefaults(known)

		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !known.IsSet(key) || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	// Check for OTEL standard env var
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		v.Set("otel_endpoint", endpoint)
		v.Set("otel_enabled", true)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for name, port := range map[string]int{"port": c.Port, "grpc_port": c.GRPCPort, "metrics_port": c.MetricsPort} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s: %d", name, port)
		}
	}
	if c.Port == c.MetricsPort || c.Port == c.GRPCPort || c.GRPCPort == c.MetricsPort {
		return fmt.Errorf("port, grpc_port and metrics_port must be different")
	}
	if c.Model == "" && c.ModelFormat != "mock" {
		return fmt.Errorf("model path is required when not using the mock model")
	}
	if c.NumClasses < 2 {
		return fmt.Errorf("num_classes must be at least 2, got %d", c.NumClasses)
	}
	switch c.CacheBackend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("unknown cache_backend %q", c.CacheBackend)
	}
	if c.CacheBackend == CacheRedis && c.Redis == "" {
		return fmt.Errorf("redis address is required when cache_backend is redis")
	}
	return nil
}
