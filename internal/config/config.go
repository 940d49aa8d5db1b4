package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort               = 3000
	defaultRegion             = "us-east-1"
	defaultBackendTimeout     = 30 * time.Second
	defaultTemperature        = 1.0
	defaultTopP               = 1.0
	defaultMaxTokens          = 2048
	defaultMaxOutputTokens    = 8192
	defaultEmbeddingParallel  = 8
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
	defaultMaxRequestBodySize = 10 << 20
)

// Config represents the application configuration parsed from YAML and the environment.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Inference  InferenceConfig  `yaml:"inference"`
	Models     ModelsConfig     `yaml:"models"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig defines listener and HTTP surface configuration.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	APIKey       string   `yaml:"api_key"`
	CORSOrigins  []string `yaml:"cors_origins"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
}

// BackendConfig locates the Bedrock runtime endpoint.
type BackendConfig struct {
	Region   string        `yaml:"region"`
	Endpoint string        `yaml:"endpoint"`
	Profile  string        `yaml:"profile"`
	Timeout  time.Duration `yaml:"timeout"`
}

// InferenceConfig carries the defaults applied when a request omits a parameter.
// Temperature and TopP are pointers so that an explicit 0 survives defaulting.
type InferenceConfig struct {
	Temperature     *float64 `yaml:"temperature"`
	TopP            *float64 `yaml:"top_p"`
	MaxTokens       int     `yaml:"max_tokens"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// ModelsConfig adds or overrides public to backend model mappings.
type ModelsConfig struct {
	Chat       map[string]string `yaml:"chat"`
	Embeddings map[string]string `yaml:"embeddings"`
}

// EmbeddingsConfig bounds the embedding fan-out.
type EmbeddingsConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration from disk when path is set, applies
// environment overrides and defaults, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT must be an integer, got %q", v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("API_KEY"); ok && v != "" {
		c.Server.APIKey = v
	}
	if v, ok := lookup("CORS_ORIGIN"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("AWS_REGION"); ok && v != "" {
		c.Backend.Region = v
	}
	if v, ok := lookup("BEDROCK_ENDPOINT"); ok && v != "" {
		c.Backend.Endpoint = v
	}
	if v, ok := lookup("AWS_PROFILE"); ok && v != "" {
		c.Backend.Profile = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaultMaxRequestBodySize
	}
	if c.Backend.Region == "" {
		c.Backend.Region = defaultRegion
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = defaultBackendTimeout
	}
	if c.Inference.Temperature == nil {
		c.Inference.Temperature = float64Ptr(defaultTemperature)
	}
	if c.Inference.TopP == nil {
		c.Inference.TopP = float64Ptr(defaultTopP)
	}
	if c.Inference.MaxTokens == 0 {
		c.Inference.MaxTokens = defaultMaxTokens
	}
	if c.Inference.MaxOutputTokens == 0 {
		c.Inference.MaxOutputTokens = defaultMaxOutputTokens
	}
	if c.Embeddings.MaxConcurrency == 0 {
		c.Embeddings.MaxConcurrency = defaultEmbeddingParallel
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative, got %d", c.Server.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Backend.Region) == "" {
		return fmt.Errorf("backend.region must be provided")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative, got %s", c.Backend.Timeout)
	}
	if t := c.Inference.Temperature; t == nil || *t < 0 || *t > 2 {
		return fmt.Errorf("inference.temperature must be within [0, 2], got %s", formatOptional(t))
	}
	if p := c.Inference.TopP; p == nil || *p < 0 || *p > 1 {
		return fmt.Errorf("inference.top_p must be within [0, 1], got %s", formatOptional(p))
	}
	if c.Inference.MaxTokens < 1 {
		return fmt.Errorf("inference.max_tokens must be positive, got %d", c.Inference.MaxTokens)
	}
	if c.Inference.MaxOutputTokens < c.Inference.MaxTokens {
		return fmt.Errorf("inference.max_output_tokens (%d) must not be below inference.max_tokens (%d)", c.Inference.MaxOutputTokens, c.Inference.MaxTokens)
	}
	if c.Embeddings.MaxConcurrency < 1 {
		return fmt.Errorf("embeddings.max_concurrency must be positive, got %d", c.Embeddings.MaxConcurrency)
	}

	if err := validateMappings("models.chat", c.Models.Chat); err != nil {
		return err
	}
	if err := validateMappings("models.embeddings", c.Models.Embeddings); err != nil {
		return err
	}
	for id := range c.Models.Chat {
		if _, dup := c.Models.Embeddings[id]; dup {
			return fmt.Errorf("model %q must not be configured as both chat and embedding model", id)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q must be one of json, text", c.Logging.Format)
	}

	return nil
}

func validateMappings(section string, mappings map[string]string) error {
	for publicID, backendID := range mappings {
		if strings.TrimSpace(publicID) == "" {
			return fmt.Errorf("%s: public model id must not be empty", section)
		}
		if strings.TrimSpace(backendID) == "" {
			return fmt.Errorf("%s: backend model id for %q must not be empty", section, publicID)
		}
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func float64Ptr(v float64) *float64 {
	return &v
}

func formatOptional(v *float64) string {
	if v == nil {
		return "unset"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
