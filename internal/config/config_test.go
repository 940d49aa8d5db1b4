package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "API_KEY", "CORS_ORIGIN", "AWS_REGION", "BEDROCK_ENDPOINT", "AWS_PROFILE", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "us-east-1", cfg.Backend.Region)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 1.0, *cfg.Inference.Temperature)
	assert.Equal(t, 1.0, *cfg.Inference.TopP)
	assert.Equal(t, 2048, cfg.Inference.MaxTokens)
	assert.Equal(t, 8192, cfg.Inference.MaxOutputTokens)
	assert.Equal(t, 8, cfg.Embeddings.MaxConcurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
  api_key: from-file
backend:
  region: eu-west-1
  timeout: 45s
inference:
  max_tokens: 1024
models:
  chat:
    my-model: amazon.nova-pro-v1:0
logging:
  format: text
`), 0o600))

	t.Setenv("AWS_REGION", "us-west-2")
	t.Setenv("API_KEY", "from-env")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Server.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "us-west-2", cfg.Backend.Region)
	assert.Equal(t, 45*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 1024, cfg.Inference.MaxTokens)
	assert.Equal(t, map[string]string{"my-model": "amazon.nova-pro-v1:0"}, cfg.Models.Chat)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadKeepsZeroSamplingDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
inference:
  temperature: 0
  top_p: 0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Inference.Temperature)
	require.NotNil(t, cfg.Inference.TopP)
	assert.Zero(t, *cfg.Inference.Temperature)
	assert.Zero(t, *cfg.Inference.TopP)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: ["), 0o600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config file")

	t.Setenv("PORT", "eighty")
	_, err = Load("")
	assert.ErrorContains(t, err, "PORT must be an integer")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid"},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.port"},
		{name: "temperature out of range", mutate: func(c *Config) { c.Inference.Temperature = float64Ptr(3) }, wantErr: "inference.temperature"},
		{name: "top_p out of range", mutate: func(c *Config) { c.Inference.TopP = float64Ptr(1.5) }, wantErr: "inference.top_p"},
		{name: "temperature unset", mutate: func(c *Config) { c.Inference.Temperature = nil }, wantErr: "got unset"},
		{name: "zero sampling defaults", mutate: func(c *Config) {
			c.Inference.Temperature = float64Ptr(0)
			c.Inference.TopP = float64Ptr(0)
		}},
		{name: "output cap below default", mutate: func(c *Config) { c.Inference.MaxOutputTokens = 100 }, wantErr: "inference.max_output_tokens"},
		{name: "empty backend mapping", mutate: func(c *Config) { c.Models.Chat = map[string]string{"x": ""} }, wantErr: "models.chat"},
		{
			name: "id in both tables",
			mutate: func(c *Config) {
				c.Models.Chat = map[string]string{"dup": "amazon.nova-pro-v1:0"}
				c.Models.Embeddings = map[string]string{"dup": "amazon.titan-embed-text-v1"}
			},
			wantErr: "both chat and embedding",
		},
		{name: "unknown log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "logging.level"},
		{name: "unknown log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
