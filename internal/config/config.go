// ABOUTME: Configuration loading and parsing for afrik-gateway
// ABOUTME: YAML or TOML files with .env loading, ${VAR} expansion, defaults, and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete afrik-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Backend   BackendConfig   `yaml:"backend" toml:"backend"`
	Sessions  SessionsConfig  `yaml:"sessions" toml:"sessions"`
	Dialogue  DialogueConfig  `yaml:"dialogue" toml:"dialogue"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the management API listener settings
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// BackendConfig holds the payment backend client settings
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url" toml:"base_url"`
	MaxRetries     int           `yaml:"max_retries" toml:"max_retries"`
	Timeout        time.Duration `yaml:"-" toml:"-"`
	RetryBaseDelay time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw        string `yaml:"timeout" toml:"timeout"`
	RetryBaseDelayRaw string `yaml:"retry_base_delay" toml:"retry_base_delay"`
}

// SessionsConfig holds WhatsApp session supervision settings
type SessionsConfig struct {
	// Dir holds one credential database per session.
	Dir            string        `yaml:"dir" toml:"dir"`
	MaxSessions    int           `yaml:"max_sessions" toml:"max_sessions"`
	DedupeCapacity int           `yaml:"dedupe_capacity" toml:"dedupe_capacity"`
	SetupTimeout   time.Duration `yaml:"-" toml:"-"`
	ReconnectBase  time.Duration `yaml:"-" toml:"-"`
	ReconnectMax   time.Duration `yaml:"-" toml:"-"`
	DedupeTTL      time.Duration `yaml:"-" toml:"-"`

	SetupTimeoutRaw  string `yaml:"setup_timeout" toml:"setup_timeout"`
	ReconnectBaseRaw string `yaml:"reconnect_base" toml:"reconnect_base"`
	ReconnectMaxRaw  string `yaml:"reconnect_max" toml:"reconnect_max"`
	DedupeTTLRaw     string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// DialogueConfig holds conversation timings
type DialogueConfig struct {
	PollMaxAttempts     int           `yaml:"poll_max_attempts" toml:"poll_max_attempts"`
	PresenceDelay       time.Duration `yaml:"-" toml:"-"`
	CardPause           time.Duration `yaml:"-" toml:"-"`
	PollInterval        time.Duration `yaml:"-" toml:"-"`
	PollCallTimeout     time.Duration `yaml:"-" toml:"-"`
	ProjectRefreshDelay time.Duration `yaml:"-" toml:"-"`
	// IdleExpiry evicts conversation state untouched for this long.
	IdleExpiry    time.Duration `yaml:"-" toml:"-"`
	SweepInterval time.Duration `yaml:"-" toml:"-"`

	PresenceDelayRaw       string `yaml:"presence_delay" toml:"presence_delay"`
	CardPauseRaw           string `yaml:"card_pause" toml:"card_pause"`
	PollIntervalRaw        string `yaml:"poll_interval" toml:"poll_interval"`
	PollCallTimeoutRaw     string `yaml:"poll_call_timeout" toml:"poll_call_timeout"`
	ProjectRefreshDelayRaw string `yaml:"project_refresh_delay" toml:"project_refresh_delay"`
	IdleExpiryRaw          string `yaml:"idle_expiry" toml:"idle_expiry"`
	SweepIntervalRaw       string `yaml:"sweep_interval" toml:"sweep_interval"`
}

// AuthConfig holds management API credentials
type AuthConfig struct {
	APIKey    string `yaml:"api_key" toml:"api_key"`
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// RateLimitConfig holds per-client-IP request budgets
type RateLimitConfig struct {
	GlobalRequests   int           `yaml:"global_requests" toml:"global_requests"`
	InstanceRequests int           `yaml:"instance_requests" toml:"instance_requests"`
	GlobalWindow     time.Duration `yaml:"-" toml:"-"`
	InstanceWindow   time.Duration `yaml:"-" toml:"-"`

	GlobalWindowRaw   string `yaml:"global_window" toml:"global_window"`
	InstanceWindowRaw string `yaml:"instance_window" toml:"instance_window"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultPath returns the config file to load when none is given:
// $AFRIK_CONFIG, then ./config.yaml, then ./config.toml.
func DefaultPath() string {
	if p := os.Getenv("AFRIK_CONFIG"); p != "" {
		return p
	}
	for _, p := range []string{"config.yaml", "config.toml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "config.yaml"
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file next to the config, then one in the working directory, is loaded
// first without overriding variables already set. Environment variables in the
// format ${VAR_NAME} or ${VAR_NAME:-default} are expanded.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	expanded := []byte(expandEnvVars(string(data)))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(expanded, &cfg)
	} else {
		err = yaml.Unmarshal(expanded, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	seen := map[string]bool{}
	for _, p := range []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"} {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// Unset variables expand to their default, or to an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}

// ApplyDefaults fills every unset field with its production value.
func (c *Config) ApplyDefaults() {
	setString(&c.Server.HTTPAddr, ":3001")
	setDuration(&c.Server.ShutdownTimeout, 15*time.Second)

	setString(&c.Backend.BaseURL, "https://api.afrikmoney.com/api")
	setInt(&c.Backend.MaxRetries, 3)
	setDuration(&c.Backend.Timeout, 30*time.Second)
	setDuration(&c.Backend.RetryBaseDelay, time.Second)

	setString(&c.Sessions.Dir, "./sessions")
	setInt(&c.Sessions.MaxSessions, 20)
	setInt(&c.Sessions.DedupeCapacity, 50_000)
	setDuration(&c.Sessions.SetupTimeout, time.Minute)
	setDuration(&c.Sessions.ReconnectBase, time.Second)
	setDuration(&c.Sessions.ReconnectMax, time.Minute)
	setDuration(&c.Sessions.DedupeTTL, 10*time.Minute)

	setInt(&c.Dialogue.PollMaxAttempts, 20)
	setDuration(&c.Dialogue.PresenceDelay, time.Second)
	setDuration(&c.Dialogue.CardPause, 500*time.Millisecond)
	setDuration(&c.Dialogue.PollInterval, 3*time.Second)
	setDuration(&c.Dialogue.PollCallTimeout, 30*time.Second)
	setDuration(&c.Dialogue.ProjectRefreshDelay, 2*time.Second)
	setDuration(&c.Dialogue.IdleExpiry, 24*time.Hour)
	setDuration(&c.Dialogue.SweepInterval, 10*time.Minute)

	setInt(&c.RateLimit.GlobalRequests, 100)
	setInt(&c.RateLimit.InstanceRequests, 10)
	setDuration(&c.RateLimit.GlobalWindow, 15*time.Minute)
	setDuration(&c.RateLimit.InstanceWindow, time.Minute)

	setString(&c.Database.Path, "./afrik-gateway.db")
	setString(&c.Logging.Level, "info")
	setString(&c.Logging.Format, "text")
}

func setString(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

func setDuration(p *time.Duration, v time.Duration) {
	if *p == 0 {
		*p = v
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.MaxRetries < 1 {
		return fmt.Errorf("backend.max_retries must be at least 1")
	}

	if c.Sessions.Dir == "" {
		return fmt.Errorf("sessions.dir is required")
	}
	if c.Sessions.MaxSessions < 1 {
		return fmt.Errorf("sessions.max_sessions must be at least 1")
	}
	if c.Sessions.ReconnectMax < c.Sessions.ReconnectBase {
		return fmt.Errorf("sessions.reconnect_max must not be below sessions.reconnect_base")
	}

	if c.Dialogue.PollMaxAttempts < 1 {
		return fmt.Errorf("dialogue.poll_max_attempts must be at least 1")
	}

	if c.Auth.APIKey == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.api_key or auth.jwt_secret is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if c.RateLimit.GlobalRequests < 1 || c.RateLimit.InstanceRequests < 1 {
		return fmt.Errorf("rate_limit request budgets must be at least 1")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return lvl, nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"backend.timeout", cfg.Backend.TimeoutRaw, &cfg.Backend.Timeout},
		{"backend.retry_base_delay", cfg.Backend.RetryBaseDelayRaw, &cfg.Backend.RetryBaseDelay},
		{"sessions.setup_timeout", cfg.Sessions.SetupTimeoutRaw, &cfg.Sessions.SetupTimeout},
		{"sessions.reconnect_base", cfg.Sessions.ReconnectBaseRaw, &cfg.Sessions.ReconnectBase},
		{"sessions.reconnect_max", cfg.Sessions.ReconnectMaxRaw, &cfg.Sessions.ReconnectMax},
		{"sessions.dedupe_ttl", cfg.Sessions.DedupeTTLRaw, &cfg.Sessions.DedupeTTL},
		{"dialogue.presence_delay", cfg.Dialogue.PresenceDelayRaw, &cfg.Dialogue.PresenceDelay},
		{"dialogue.card_pause", cfg.Dialogue.CardPauseRaw, &cfg.Dialogue.CardPause},
		{"dialogue.poll_interval", cfg.Dialogue.PollIntervalRaw, &cfg.Dialogue.PollInterval},
		{"dialogue.poll_call_timeout", cfg.Dialogue.PollCallTimeoutRaw, &cfg.Dialogue.PollCallTimeout},
		{"dialogue.project_refresh_delay", cfg.Dialogue.ProjectRefreshDelayRaw, &cfg.Dialogue.ProjectRefreshDelay},
		{"dialogue.idle_expiry", cfg.Dialogue.IdleExpiryRaw, &cfg.Dialogue.IdleExpiry},
		{"dialogue.sweep_interval", cfg.Dialogue.SweepIntervalRaw, &cfg.Dialogue.SweepInterval},
		{"rate_limit.global_window", cfg.RateLimit.GlobalWindowRaw, &cfg.RateLimit.GlobalWindow},
		{"rate_limit.instance_window", cfg.RateLimit.InstanceWindowRaw, &cfg.RateLimit.InstanceWindow},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}
	return nil
}
