// ABOUTME: Configuration loading and parsing for aplmint
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete aplmint configuration
type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Quota      QuotaConfig      `yaml:"quota"`
	Models     []ModelConfig    `yaml:"models"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// TelegramConfig holds the bot transport configuration
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// OpenRouterConfig holds completion provider configuration
type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	Referer string `yaml:"referer"` // HTTP-Referer attribution header
	Title   string `yaml:"title"`   // X-Title attribution header

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// QuotaConfig holds the per-user daily allowance
type QuotaConfig struct {
	DailyLimit int `yaml:"daily_limit"`
}

// ModelConfig is one selectable model. Order in the config file is
// significant: the first entry is the system default.
type ModelConfig struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the health/metrics HTTP listener address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultModels is the registry used when the config file lists none:
// OpenRouter's free tier, DeepSeek first as the system default.
var DefaultModels = []ModelConfig{
	{Name: "DeepSeek", ID: "deepseek/deepseek-chat:free"},
	{Name: "Gemini", ID: "google/gemini-2.0-flash-exp:free"},
	{Name: "Devstral", ID: "mistralai/devstral-small:free"},
	{Name: "Mistral 7b", ID: "mistralai/mistral-7b-instruct:free"},
	{Name: "Gemma 7b", ID: "google/gemma-7b-it:free"},
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

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
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

// applyDefaults fills optional sections with their default values
func (c *Config) applyDefaults() {
	if len(c.Models) == 0 {
		c.Models = append(c.Models, DefaultModels...)
	}
	if c.Quota.DailyLimit == 0 {
		c.Quota.DailyLimit = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "aplmint.db"
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8081"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (set TELEGRAM_BOT_TOKEN)")
	}
	if c.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter.api_key is required (set OPENROUTER_API_KEY)")
	}
	if c.Quota.DailyLimit < 0 {
		return fmt.Errorf("quota.daily_limit must not be negative")
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" || m.ID == "" {
			return fmt.Errorf("models[%d]: name and id are required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("models[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.OpenRouter.TimeoutRaw != "" {
		cfg.OpenRouter.Timeout, err = time.ParseDuration(cfg.OpenRouter.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing openrouter.timeout %q: %w", cfg.OpenRouter.TimeoutRaw, err)
		}
	}
	if cfg.OpenRouter.Timeout == 0 {
		cfg.OpenRouter.Timeout = 30 * time.Second
	}

	return nil
}
