// Package config loads and validates the service's YAML configuration,
// collapsing the teacher's multi-provider shape down to the single
// market-data provider this service talks to.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/symbolcache/symbolcache/internal/secrets"
)

// Config is the top-level service configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Budget   BudgetConfig   `yaml:"budget"`
	Server   ServerConfig   `yaml:"server"`
	Warmup   WarmupConfig   `yaml:"warmup"`
}

// ProviderConfig configures the single market-data provider.
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Exchange  string        `yaml:"exchange"`
	MIC       string        `yaml:"mic"`
	APIKey    string        `yaml:"api_key"` // normally left blank; see env.go
	RPS       int           `yaml:"rps"`
	Burst     int           `yaml:"burst"`
	BackoffMS BackoffConfig `yaml:"backoff_ms"`
	Circuit   CircuitConfig `yaml:"circuit"`
}

// BackoffConfig is the HTTP client's exponential backoff policy.
type BackoffConfig struct {
	BaseMS int  `yaml:"base_ms"`
	MaxMS  int  `yaml:"max_ms"`
	Jitter bool `yaml:"jitter"`
}

// CircuitConfig is the MarketClient's circuit breaker policy.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	SuccessThreshold int `yaml:"success_threshold"`
	TimeoutMS        int `yaml:"timeout_ms"`
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
}

// BudgetConfig is the daily request budget for the provider.
type BudgetConfig struct {
	DailyLimit    int64   `yaml:"daily_limit"`
	WarnThreshold float64 `yaml:"warn_threshold"`
	ResetHour     int     `yaml:"reset_hour"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	AskTimeoutMS int    `yaml:"ask_timeout_ms"`
}

// WarmupConfig controls the WarmupPipeline's concurrency and retry policy.
type WarmupConfig struct {
	MaxParallelFetches int `yaml:"max_parallel_fetches"`
	MaxAttempts        int `yaml:"max_attempts"`
	BackoffBaseMS      int `yaml:"backoff_base_ms"`
	BackoffMaxMS       int `yaml:"backoff_max_ms"`
}

// Load reads and validates configuration from a YAML file, then applies
// the STOCKCACHE_API_KEY environment override (see env.go) so the API key
// never needs to live in the file on disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	ApplyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyEnvOverrides layers environment-variable overrides onto a loaded
// config. Currently this is just the API key, so it never has to live in
// the YAML file on disk.
func ApplyEnvOverrides(cfg *Config) {
	if key, ok := secrets.APIKeyFromEnv(); ok {
		cfg.Provider.APIKey = key
	}
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url cannot be empty")
	}
	if c.Provider.Exchange == "" {
		return fmt.Errorf("provider.exchange cannot be empty")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key cannot be empty (set provider.api_key or STOCKCACHE_API_KEY)")
	}
	if c.Provider.RPS <= 0 {
		return fmt.Errorf("provider.rps must be positive, got %d", c.Provider.RPS)
	}
	if c.Provider.Burst < c.Provider.RPS {
		return fmt.Errorf("provider.burst (%d) must be >= provider.rps (%d)", c.Provider.Burst, c.Provider.RPS)
	}
	if err := c.Provider.BackoffMS.Validate(); err != nil {
		return fmt.Errorf("provider.backoff_ms: %w", err)
	}
	if err := c.Provider.Circuit.Validate(); err != nil {
		return fmt.Errorf("provider.circuit: %w", err)
	}

	if c.Budget.DailyLimit <= 0 {
		return fmt.Errorf("budget.daily_limit must be positive, got %d", c.Budget.DailyLimit)
	}
	if c.Budget.WarnThreshold <= 0 || c.Budget.WarnThreshold > 1 {
		return fmt.Errorf("budget.warn_threshold must be in (0,1], got %f", c.Budget.WarnThreshold)
	}
	if c.Budget.ResetHour < 0 || c.Budget.ResetHour > 23 {
		return fmt.Errorf("budget.reset_hour must be between 0 and 23, got %d", c.Budget.ResetHour)
	}

	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Server.AskTimeoutMS <= 0 {
		return fmt.Errorf("server.ask_timeout_ms must be positive, got %d", c.Server.AskTimeoutMS)
	}

	if c.Warmup.MaxParallelFetches <= 0 {
		return fmt.Errorf("warmup.max_parallel_fetches must be positive, got %d", c.Warmup.MaxParallelFetches)
	}
	if c.Warmup.MaxAttempts <= 0 {
		return fmt.Errorf("warmup.max_attempts must be positive, got %d", c.Warmup.MaxAttempts)
	}

	return nil
}

// Validate ensures backoff configuration is valid.
func (b *BackoffConfig) Validate() error {
	if b.BaseMS <= 0 {
		return fmt.Errorf("base_ms must be positive, got %d", b.BaseMS)
	}
	if b.MaxMS <= b.BaseMS {
		return fmt.Errorf("max_ms (%d) must be > base_ms (%d)", b.MaxMS, b.BaseMS)
	}
	return nil
}

// Validate ensures circuit breaker configuration is valid.
func (c *CircuitConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("success_threshold must be positive, got %d", c.SuccessThreshold)
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMS)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("request_timeout_ms must be positive, got %d", c.RequestTimeoutMS)
	}
	return nil
}

// GetBaseBackoff returns the base backoff as a time.Duration.
func (b *BackoffConfig) GetBaseBackoff() time.Duration {
	return time.Duration(b.BaseMS) * time.Millisecond
}

// GetMaxBackoff returns the maximum backoff as a time.Duration.
func (b *BackoffConfig) GetMaxBackoff() time.Duration {
	return time.Duration(b.MaxMS) * time.Millisecond
}

// GetTimeout returns the breaker's open-state timeout as a time.Duration.
func (c *CircuitConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// GetRequestTimeout returns the per-call timeout as a time.Duration.
func (c *CircuitConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// GetAskTimeout returns the HTTP layer's AskOne/AskAll timeout.
func (s *ServerConfig) GetAskTimeout() time.Duration {
	return time.Duration(s.AskTimeoutMS) * time.Millisecond
}

// GetBackoffBase returns the warm-up retry base backoff.
func (w *WarmupConfig) GetBackoffBase() time.Duration {
	return time.Duration(w.BackoffBaseMS) * time.Millisecond
}

// GetBackoffMax returns the warm-up retry max backoff.
func (w *WarmupConfig) GetBackoffMax() time.Duration {
	return time.Duration(w.BackoffMaxMS) * time.Millisecond
}
