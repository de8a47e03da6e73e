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

// Config holds the edge gateway configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Search   SearchConfig   `yaml:"search"`
	Purchase PurchaseConfig `yaml:"purchase"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds key-value store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// AuthConfig holds token issuance settings. SigningKey is a base64 Ed25519
// seed or private key, typically injected via ${EDGE_SIGNING_KEY}.
type AuthConfig struct {
	SigningKey   string `yaml:"signing_key"`
	KeyID        string `yaml:"key_id"`
	TokenTTLSec  int    `yaml:"token_ttl_sec"`
	ClockSkewSec int    `yaml:"clock_skew_sec"`
}

// BackendKind is the search backend variant, resolved once at startup.
type BackendKind int

const (
	// BackendLocal is the in-process inverted index.
	BackendLocal BackendKind = iota
	// BackendRemote delegates to a remote search service.
	BackendRemote
)

// SearchConfig holds search dispatch settings.
type SearchConfig struct {
	Backend    string  `yaml:"backend"` // local, remote (default: local)
	TimeoutSec int     `yaml:"timeout_sec"`
	MinScore   float64 `yaml:"min_score"`
	SeedFile   string  `yaml:"seed_file"`
	RemoteURL  string  `yaml:"remote_url"`
}

// Kind resolves the backend string into its typed variant.
func (s SearchConfig) Kind() (BackendKind, error) {
	switch s.Backend {
	case "", "local":
		return BackendLocal, nil
	case "remote":
		return BackendRemote, nil
	default:
		return 0, fmt.Errorf("search.backend must be \"local\" or \"remote\", got %q", s.Backend)
	}
}

// PurchaseConfig holds transaction issuance settings.
type PurchaseConfig struct {
	RateWindowSec   int   `yaml:"rate_window_sec"`
	RateCapacity    int64 `yaml:"rate_capacity"`
	ReceiptTTLHours int   `yaml:"receipt_ttl_hours"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
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
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Auth.TokenTTLSec <= 0 {
		c.Auth.TokenTTLSec = 300
	}
	if c.Auth.ClockSkewSec <= 0 {
		c.Auth.ClockSkewSec = 60
	}
	if c.Search.Backend == "" {
		c.Search.Backend = "local"
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 8
	}
	if c.Purchase.RateWindowSec <= 0 {
		c.Purchase.RateWindowSec = 300
	}
	if c.Purchase.RateCapacity <= 0 {
		c.Purchase.RateCapacity = 30
	}
	if c.Purchase.ReceiptTTLHours <= 0 {
		c.Purchase.ReceiptTTLHours = 24
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "edge:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}
	if c.Auth.KeyID == "" {
		return fmt.Errorf("auth.key_id is required")
	}
	kind, err := c.Search.Kind()
	if err != nil {
		return err
	}
	if kind == BackendRemote && c.Search.RemoteURL == "" {
		return fmt.Errorf("search.remote_url is required for the remote backend")
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
