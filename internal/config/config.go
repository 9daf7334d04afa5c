// ABOUTME: Configuration loading and parsing for the atelier client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete atelier configuration
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	ToolServer ToolServerConfig `yaml:"tool_server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BackendConfig holds the chat backend endpoints and turn settings
type BackendConfig struct {
	Endpoint        string `yaml:"endpoint"`
	StopEndpoint    string `yaml:"stop_endpoint"`
	Model           string `yaml:"model"`
	MaxChainedTurns int    `yaml:"max_chained_turns"`

	StopTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	StopTimeoutRaw string `yaml:"stop_timeout"`
}

// AuthConfig holds bearer token sources, checked in order:
// token literal, then token_file, then the ATELIER_TOKEN env var
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// DatabaseConfig holds conversation persistence configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ToolServerConfig holds the local tool invocation listener settings
type ToolServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Endpoint:        "http://localhost:8000/chat",
			StopEndpoint:    "http://localhost:8000/stop",
			Model:           "default",
			MaxChainedTurns: 8,
			StopTimeout:     10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./atelier.db",
		},
		ToolServer: ToolServerConfig{
			Addr: "127.0.0.1:8001",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Backend.Endpoint == "" {
		return fmt.Errorf("backend.endpoint is required")
	}
	if err := validateHTTPURL("backend.endpoint", c.Backend.Endpoint); err != nil {
		return err
	}
	if c.Backend.StopEndpoint != "" {
		if err := validateHTTPURL("backend.stop_endpoint", c.Backend.StopEndpoint); err != nil {
			return err
		}
	}

	if c.Backend.Model == "" {
		return fmt.Errorf("backend.model is required")
	}
	if c.Backend.MaxChainedTurns < 0 {
		return fmt.Errorf("backend.max_chained_turns must be >= 0 (0 means unbounded)")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.ToolServer.Enabled && c.ToolServer.Addr == "" {
		return fmt.Errorf("tool_server.addr is required when tool_server is enabled")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

func validateHTTPURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q is not a valid http(s) URL", field, value)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Backend.StopTimeoutRaw != "" {
		cfg.Backend.StopTimeout, err = time.ParseDuration(cfg.Backend.StopTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing stop_timeout %q: %w", cfg.Backend.StopTimeoutRaw, err)
		}
	}

	return nil
}
