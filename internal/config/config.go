// Package config loads and validates the discovery configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names, in the order the orchestrator visits them.
const (
	GoogleCSE  = "google_cse"
	DuckDuckGo = "duckduckgo"
)

// ProviderOrder is the stable provider iteration order.
var ProviderOrder = []string{GoogleCSE, DuckDuckGo}

// Unlimited is the quota applied when a provider sets no threshold.
const Unlimited = 1_000_000_000

// Error reports a missing or invalid configuration. It is always fatal.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Config captures everything a discovery run needs.
type Config struct {
	Keywords  []string        `mapstructure:"keywords"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ProvidersConfig holds the per-provider settings.
type ProvidersConfig struct {
	GoogleCSE  ProviderConfig `mapstructure:"google_cse"`
	DuckDuckGo ProviderConfig `mapstructure:"duckduckgo"`
}

// ProviderConfig is immutable once loaded. Credentials are never stored here,
// only the names of the environment variables that hold them.
type ProviderConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	RateLimitRPS        float64  `mapstructure:"rate_limit_rps"`
	JitterPercent       float64  `mapstructure:"jitter_percent"`
	RetryAttempts       int      `mapstructure:"retry_attempts"`
	BackoffBaseSeconds  float64  `mapstructure:"backoff_base_seconds"`
	BackoffMaxSeconds   float64  `mapstructure:"backoff_max_seconds"`
	DailyQuotaThreshold int      `mapstructure:"daily_quota_threshold"`
	TimeoutSeconds      float64  `mapstructure:"timeout_seconds"`
	UserAgent           string   `mapstructure:"user_agent"`
	Fingerprint         string   `mapstructure:"fingerprint"`
	Proxies             []string `mapstructure:"proxies"`

	// google_cse
	APIKeyEnv string `mapstructure:"api_key_env"`
	CXEnv     string `mapstructure:"cx_env"`
	Safe      string `mapstructure:"safe"`

	// duckduckgo
	Method string `mapstructure:"method"`
	Region string `mapstructure:"region"`
}

// Timeout converts TimeoutSeconds to a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds * float64(time.Second))
}

// StorageConfig selects the optional run-history backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// Provider returns the settings for the named provider.
func (c Config) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case GoogleCSE:
		return c.Providers.GoogleCSE, true
	case DuckDuckGo:
		return c.Providers.DuckDuckGo, true
	}
	return ProviderConfig{}, false
}

// Load reads the YAML document at path, applies SCOUT_ environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, &Error{Msg: "config path is required"}
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, &Error{Msg: fmt.Sprintf("config file not found: %s", path)}
		}
		return Config{}, &Error{Msg: "stat config", Err: err}
	}

	v := viper.New()
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, &Error{Msg: "read config", Err: err}
	}

	if err := checkKeywords(v); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &Error{Msg: "unmarshal config", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func checkKeywords(v *viper.Viper) error {
	raw := v.Get("keywords")
	if raw == nil {
		return &Error{Msg: "config missing 'keywords' field"}
	}
	switch kw := raw.(type) {
	case []any:
		if len(kw) == 0 {
			return &Error{Msg: "'keywords' list is empty"}
		}
	case []string:
		if len(kw) == 0 {
			return &Error{Msg: "'keywords' list is empty"}
		}
	default:
		return &Error{Msg: "'keywords' must be a list"}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	for _, name := range ProviderOrder {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"rate_limit_rps", 0.5)
		v.SetDefault(prefix+"jitter_percent", 20.0)
		v.SetDefault(prefix+"retry_attempts", 3)
		v.SetDefault(prefix+"backoff_base_seconds", 0.5)
		v.SetDefault(prefix+"backoff_max_seconds", 8.0)
		v.SetDefault(prefix+"daily_quota_threshold", Unlimited)
		v.SetDefault(prefix+"fingerprint", "go")
	}
	v.SetDefault("providers.google_cse.timeout_seconds", 12.0)
	v.SetDefault("providers.google_cse.api_key_env", "GOOGLE_API_KEY")
	v.SetDefault("providers.google_cse.cx_env", "GOOGLE_CSE_ID")
	v.SetDefault("providers.google_cse.safe", "active")
	v.SetDefault("providers.duckduckgo.timeout_seconds", 10.0)
	v.SetDefault("providers.duckduckgo.method", "html")
	v.SetDefault("providers.duckduckgo.region", "us-en")
	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.dsn", "")
}

// Validate enforces required values and sane numeric ranges.
func (c Config) Validate() error {
	if len(c.Keywords) == 0 {
		return &Error{Msg: "'keywords' list is empty"}
	}
	for i, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			return &Error{Msg: fmt.Sprintf("keywords[%d] is blank", i)}
		}
	}

	for _, name := range ProviderOrder {
		p, _ := c.Provider(name)
		if err := p.validate(name); err != nil {
			return err
		}
	}
	if c.Providers.GoogleCSE.APIKeyEnv == "" || c.Providers.GoogleCSE.CXEnv == "" {
		return &Error{Msg: "providers.google_cse.api_key_env and cx_env must name environment variables"}
	}
	if m := c.Providers.DuckDuckGo.Method; m != "html" && m != "scrape" {
		return &Error{Msg: fmt.Sprintf("providers.duckduckgo.method %q is not supported", m)}
	}

	switch c.Storage.Backend {
	case "", "none":
	case "json", "csv", "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return &Error{Msg: fmt.Sprintf("storage.dsn must be set for backend %q", c.Storage.Backend)}
		}
	default:
		return &Error{Msg: fmt.Sprintf("storage.backend %q is not supported", c.Storage.Backend)}
	}
	return nil
}

func (p ProviderConfig) validate(name string) error {
	field := func(f string) string { return "providers." + name + "." + f }
	switch {
	case p.RateLimitRPS < 0:
		return &Error{Msg: field("rate_limit_rps") + " must be >= 0"}
	case p.JitterPercent < 0 || p.JitterPercent > 100:
		return &Error{Msg: field("jitter_percent") + " must be between 0 and 100"}
	case p.RetryAttempts < 1:
		return &Error{Msg: field("retry_attempts") + " must be >= 1"}
	case p.BackoffBaseSeconds < 0:
		return &Error{Msg: field("backoff_base_seconds") + " must be >= 0"}
	case p.BackoffMaxSeconds < p.BackoffBaseSeconds:
		return &Error{Msg: field("backoff_max_seconds") + " must be >= backoff_base_seconds"}
	case p.DailyQuotaThreshold < 0:
		return &Error{Msg: field("daily_quota_threshold") + " must be >= 0"}
	case p.TimeoutSeconds <= 0:
		return &Error{Msg: field("timeout_seconds") + " must be > 0"}
	}
	return nil
}
