package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Guard     GuardConfig
	Logging   LogConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
}

// GuardConfig parameterizes the freeze detection and recovery subsystems.
type GuardConfig struct {
	// Request watchdog
	MaxPendingTime        time.Duration `envconfig:"GUARD_MAX_PENDING_TIME" default:"30s"`
	MaxConcurrentRequests int           `envconfig:"GUARD_MAX_CONCURRENT_REQUESTS" default:"50"`
	ReaperInterval        time.Duration `envconfig:"GUARD_REAPER_INTERVAL" default:"5s"`

	// Fallback orchestrator
	TimeoutDelay        time.Duration `envconfig:"GUARD_TIMEOUT_DELAY" default:"45s"`
	MaxRecoveryAttempts int           `envconfig:"GUARD_MAX_RECOVERY_ATTEMPTS" default:"3"`
	EnableForceReload   bool          `envconfig:"GUARD_ENABLE_FORCE_RELOAD" default:"true"`
	EnableStateReset    bool          `envconfig:"GUARD_ENABLE_STATE_RESET" default:"true"`
	ReentrancyWindow    time.Duration `envconfig:"GUARD_REENTRANCY_WINDOW" default:"5s"`
	ReloadDelay         time.Duration `envconfig:"GUARD_RELOAD_DELAY" default:"3s"`
	WarningMessage      string        `envconfig:"GUARD_WARNING_MESSAGE" default:"The page stopped responding and will reload in a moment."`

	// Modal lifecycle and orphan detection
	CloseDelay       time.Duration `envconfig:"GUARD_CLOSE_DELAY" default:"150ms"`
	DetectorInterval time.Duration `envconfig:"GUARD_DETECTOR_INTERVAL" default:"2500ms"`

	// Render loop monitor
	RenderWindow time.Duration `envconfig:"GUARD_RENDER_WINDOW" default:"5s"`
	MaxRenders   int           `envconfig:"GUARD_MAX_RENDERS" default:"50"`

	DebugMode bool `envconfig:"GUARD_DEBUG" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// ServerConfig holds the companion HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// RateLimitConfig holds rate limiting configuration for the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfigProcess(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Guard.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envconfigProcess(cfg *Config) error {
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Guard: DefaultGuard(),
		Logging: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// DefaultGuard returns the default guard tuning.
func DefaultGuard() GuardConfig {
	return GuardConfig{
		MaxPendingTime:        30 * time.Second,
		MaxConcurrentRequests: 50,
		ReaperInterval:        5 * time.Second,
		TimeoutDelay:          45 * time.Second,
		MaxRecoveryAttempts:   3,
		EnableForceReload:     true,
		EnableStateReset:      true,
		ReentrancyWindow:      5 * time.Second,
		ReloadDelay:           3 * time.Second,
		WarningMessage:        "The page stopped responding and will reload in a moment.",
		CloseDelay:            150 * time.Millisecond,
		DetectorInterval:      2500 * time.Millisecond,
		RenderWindow:          5 * time.Second,
		MaxRenders:            50,
	}
}

// Validate checks that every setting is usable.
func (g GuardConfig) Validate() error {
	positive := map[string]time.Duration{
		"max pending time":  g.MaxPendingTime,
		"reaper interval":   g.ReaperInterval,
		"timeout delay":     g.TimeoutDelay,
		"detector interval": g.DetectorInterval,
		"render window":     g.RenderWindow,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, name, d)
		}
	}

	switch {
	case g.CloseDelay < 0:
		return fmt.Errorf("%w: close delay must not be negative", ErrInvalid)
	case g.ReentrancyWindow < 0:
		return fmt.Errorf("%w: reentrancy window must not be negative", ErrInvalid)
	case g.ReloadDelay < 0:
		return fmt.Errorf("%w: reload delay must not be negative", ErrInvalid)
	case g.MaxRecoveryAttempts < 0:
		return fmt.Errorf("%w: max recovery attempts must not be negative", ErrInvalid)
	case g.MaxConcurrentRequests < 0:
		return fmt.Errorf("%w: max concurrent requests must not be negative", ErrInvalid)
	case g.MaxRenders <= 0:
		return fmt.Errorf("%w: max renders must be positive", ErrInvalid)
	}
	return nil
}
