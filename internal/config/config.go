package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the tablechat API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Index      IndexConfig      `yaml:"index"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Completion CompletionConfig `yaml:"completion"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Driver string `yaml:"driver"` // pinecone, redis (default: pinecone)

	// Pinecone driver.
	APIKey string `yaml:"api_key"`
	Host   string `yaml:"host"`

	// Redis driver.
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	IndexName        string   `yaml:"index_name"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`

	UpsertBatchSize int `yaml:"upsert_batch_size"`
	TopK            int `yaml:"top_k"`
}

// SimilarityConfig holds sentence similarity scoring settings.
type SimilarityConfig struct {
	APIKey    string `yaml:"api_key"`
	URL       string `yaml:"url"`
	Reference string `yaml:"reference"`
	BatchSize int    `yaml:"batch_size"`
	DelayMS   int    `yaml:"delay_ms"`
}

// CompletionConfig holds chat completion settings.
type CompletionConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Uploads embed every chunk before responding, so the write side
		// gets far more room than a typical API.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Index.Driver == "" {
		c.Index.Driver = "pinecone"
	}
	if c.Index.IndexName == "" {
		c.Index.IndexName = "tablechat"
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "tablechat:vec:"
	}
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Index.UpsertBatchSize <= 0 {
		c.Index.UpsertBatchSize = 100
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = 5
	}
	if c.Similarity.BatchSize <= 0 {
		c.Similarity.BatchSize = 10
	}
	if c.Similarity.DelayMS <= 0 {
		c.Similarity.DelayMS = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Index.Driver {
	case "pinecone":
		if c.Index.APIKey == "" {
			return fmt.Errorf("index.api_key is required for the pinecone driver")
		}
		if c.Index.Host == "" {
			return fmt.Errorf("index.host is required for the pinecone driver")
		}
	case "redis":
		if len(c.Index.Addrs) == 0 {
			return fmt.Errorf("index.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("index.driver must be \"pinecone\" or \"redis\", got %q", c.Index.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
