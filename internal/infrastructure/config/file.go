package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// fileGuard mirrors GuardConfig for YAML/TOML files. Pointer fields leave
// unset keys untouched when the file is overlaid.
type fileGuard struct {
	MaxPendingTime        *string `yaml:"max_pending_time" toml:"max_pending_time"`
	MaxConcurrentRequests *int    `yaml:"max_concurrent_requests" toml:"max_concurrent_requests"`
	ReaperInterval        *string `yaml:"reaper_interval" toml:"reaper_interval"`
	TimeoutDelay          *string `yaml:"timeout_delay" toml:"timeout_delay"`
	MaxRecoveryAttempts   *int    `yaml:"max_recovery_attempts" toml:"max_recovery_attempts"`
	EnableForceReload     *bool   `yaml:"enable_force_reload" toml:"enable_force_reload"`
	EnableStateReset      *bool   `yaml:"enable_state_reset" toml:"enable_state_reset"`
	ReentrancyWindow      *string `yaml:"reentrancy_window" toml:"reentrancy_window"`
	ReloadDelay           *string `yaml:"reload_delay" toml:"reload_delay"`
	WarningMessage        *string `yaml:"warning_message" toml:"warning_message"`
	CloseDelay            *string `yaml:"close_delay" toml:"close_delay"`
	DetectorInterval      *string `yaml:"detector_interval" toml:"detector_interval"`
	RenderWindow          *string `yaml:"render_window" toml:"render_window"`
	MaxRenders            *int    `yaml:"max_renders" toml:"max_renders"`
	DebugMode             *bool   `yaml:"debug" toml:"debug"`
}

type fileConfig struct {
	Guard   fileGuard `yaml:"guard" toml:"guard"`
	Logging struct {
		Level *string `yaml:"level" toml:"level"`
	} `yaml:"logging" toml:"logging"`
	Server struct {
		Port *string `yaml:"port" toml:"port"`
		Host *string `yaml:"host" toml:"host"`
	} `yaml:"server" toml:"server"`
}

// LoadFile loads environment configuration and overlays the YAML or TOML
// file at path. Keys present in the file take precedence.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := envconfigProcess(&cfg); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalid, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := fc.apply(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Guard.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	g := &cfg.Guard
	durations := []struct {
		src *string
		dst *time.Duration
		key string
	}{
		{fc.Guard.MaxPendingTime, &g.MaxPendingTime, "max_pending_time"},
		{fc.Guard.ReaperInterval, &g.ReaperInterval, "reaper_interval"},
		{fc.Guard.TimeoutDelay, &g.TimeoutDelay, "timeout_delay"},
		{fc.Guard.ReentrancyWindow, &g.ReentrancyWindow, "reentrancy_window"},
		{fc.Guard.ReloadDelay, &g.ReloadDelay, "reload_delay"},
		{fc.Guard.CloseDelay, &g.CloseDelay, "close_delay"},
		{fc.Guard.DetectorInterval, &g.DetectorInterval, "detector_interval"},
		{fc.Guard.RenderWindow, &g.RenderWindow, "render_window"},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%w: guard.%s: %v", ErrInvalid, d.key, err)
		}
		*d.dst = v
	}

	setInt(fc.Guard.MaxConcurrentRequests, &g.MaxConcurrentRequests)
	setInt(fc.Guard.MaxRecoveryAttempts, &g.MaxRecoveryAttempts)
	setInt(fc.Guard.MaxRenders, &g.MaxRenders)
	setBool(fc.Guard.EnableForceReload, &g.EnableForceReload)
	setBool(fc.Guard.EnableStateReset, &g.EnableStateReset)
	setBool(fc.Guard.DebugMode, &g.DebugMode)
	setString(fc.Guard.WarningMessage, &g.WarningMessage)
	setString(fc.Logging.Level, &cfg.Logging.Level)
	setString(fc.Server.Port, &cfg.Server.Port)
	setString(fc.Server.Host, &cfg.Server.Host)
	return nil
}

func setInt(src *int, dst *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(src *bool, dst *bool) {
	if src != nil {
		*dst = *src
	}
}

func setString(src *string, dst *string) {
	if src != nil {
		*dst = *src
	}
}
