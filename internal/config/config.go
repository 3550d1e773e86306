// ABOUTME: Configuration loading and parsing for hubd
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete hubd configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Identity IdentityConfig `yaml:"identity"`
	Mail     MailConfig     `yaml:"mail"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// BaseURL is the external URL used when building approval links.
	// If not set it is derived from http_addr.
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AdminConfig holds the bootstrap super-admin identity and session settings.
// The password is provisioned out-of-band as a bcrypt hash, never plaintext.
type AdminConfig struct {
	Email         string `yaml:"email"`
	PasswordHash  string `yaml:"password_hash"`
	Username      string `yaml:"username"`
	NotifyAddress string `yaml:"notify_address"`

	SessionTTL    time.Duration `yaml:"-"`
	SessionTTLRaw string        `yaml:"session_ttl"`
}

// IdentityConfig selects and configures the external identity provider client.
type IdentityConfig struct {
	// Provider is "jwt" (verify provider session cookies) or "mock" (fixed
	// identity for local development). Selected once at startup.
	Provider      string `yaml:"provider"`
	SigningSecret string `yaml:"signing_secret"`
	SessionCookie string `yaml:"session_cookie"`
	WebhookSecret string `yaml:"webhook_secret"`

	// Mock identity fields, used only when provider is "mock".
	MockKey      string `yaml:"mock_key"`
	MockEmail    string `yaml:"mock_email"`
	MockUsername string `yaml:"mock_username"`
}

// MailConfig holds transactional email sender configuration.
type MailConfig struct {
	// Sender is "api" (HTTP send API) or "log" (log-only, for development).
	Sender    string `yaml:"sender"`
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
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

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values that have sensible fallbacks.
func (c *Config) applyDefaults() {
	if c.Admin.SessionTTL == 0 {
		c.Admin.SessionTTL = 24 * time.Hour
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Identity.Provider == "" {
		c.Identity.Provider = "jwt"
	}
	if c.Identity.SessionCookie == "" {
		c.Identity.SessionCookie = "__session"
	}
	if c.Mail.Sender == "" {
		c.Mail.Sender = "log"
	}
	if c.Server.BaseURL == "" && c.Server.HTTPAddr != "" {
		c.Server.BaseURL = "http://" + c.Server.HTTPAddr
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Admin.Email == "" {
		return fmt.Errorf("admin.email is required")
	}
	if c.Admin.PasswordHash == "" {
		return fmt.Errorf("admin.password_hash is required")
	}
	if c.Admin.NotifyAddress == "" {
		return fmt.Errorf("admin.notify_address is required")
	}

	switch c.Identity.Provider {
	case "jwt":
		if c.Identity.SigningSecret == "" {
			return fmt.Errorf("identity.signing_secret is required when identity.provider is jwt")
		}
	case "mock":
		if c.Identity.MockKey == "" {
			return fmt.Errorf("identity.mock_key is required when identity.provider is mock")
		}
	default:
		return fmt.Errorf("identity.provider must be jwt or mock, got %q", c.Identity.Provider)
	}

	switch c.Mail.Sender {
	case "api":
		if c.Mail.APIKey == "" || c.Mail.APISecret == "" {
			return fmt.Errorf("mail.api_key and mail.api_secret are required when mail.sender is api")
		}
		if c.Mail.FromEmail == "" {
			return fmt.Errorf("mail.from_email is required when mail.sender is api")
		}
	case "log":
		// No further requirements.
	default:
		return fmt.Errorf("mail.sender must be api or log, got %q", c.Mail.Sender)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Admin.SessionTTLRaw != "" {
		cfg.Admin.SessionTTL, err = time.ParseDuration(cfg.Admin.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Admin.SessionTTLRaw, err)
		}
	}

	return nil
}
