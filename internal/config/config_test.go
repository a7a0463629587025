package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, 9100, cfg.MetricsPort)
	assert.Equal(t, "Cancer-RandomForest", cfg.ModelName)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Priority(t *testing.T) {
	path := writeConfig(t, `
port: 6000
model: /models/rf.json
cache_ttl: 30s
log_level: debug
`)
	t.Setenv("DIAGNOSIS_SERVICE_LOG_LEVEL", "warn")
	t.Setenv("DIAGNOSIS_SERVICE_METRICS_PORT", "9200")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 5000, "")
	flags.String("model-format", "", "")
	flags.Bool("unrelated", false, "")
	require.NoError(t, flags.Parse([]string{"--model-format=forest"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	// file beats default, unchanged flag does not override the file
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, "/models/rf.json", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	// env beats file
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 9200, cfg.MetricsPort)
	// changed flag beats everything
	assert.Equal(t, "forest", cfg.ModelFormat)
}

func TestLoad_OTELEndpointEnablesTracing(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4317")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.OTELEnabled)
	assert.Equal(t, "http://collector:4317", cfg.OTELEndpoint)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port: 5000, GRPCPort: 50051, MetricsPort: 9100,
			Model: "model.onnx", NumClasses: 2, CacheBackend: CacheMemory,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"zero metrics port", func(c *Config) { c.MetricsPort = 0 }},
		{"duplicate ports", func(c *Config) { c.GRPCPort = c.Port }},
		{"no model", func(c *Config) { c.Model = "" }},
		{"one class", func(c *Config) { c.NumClasses = 1 }},
		{"unknown cache", func(c *Config) { c.CacheBackend = "memcached" }},
		{"redis without address", func(c *Config) { c.CacheBackend = CacheRedis; c.Redis = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid()
	cfg.Model = ""
	cfg.ModelFormat = "mock"
	assert.NoError(t, cfg.Validate())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
