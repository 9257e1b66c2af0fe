package script

import (
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/GriffinCanCode/freezeguard/internal/httpwatch"
)

// Config defines runtime configuration
type Config struct {
	Timeout       time.Duration // Execution timeout
	EnableConsole bool          // Allow console.log/warn/error
	MaxCallStack  int           // Maximum call stack depth

	// HTTP configures the watched client behind guard.fetch.
	HTTP httpwatch.ClientOptions
}

// DefaultConfig returns the default scenario runtime configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		EnableConsole: true,
		MaxCallStack:  1024,
		HTTP:          scenarioHTTP(),
	}
}

func scenarioHTTP() httpwatch.ClientOptions {
	opts := httpwatch.DefaultClientOptions()
	opts.RetryMax = 0
	opts.Timeout = 30 * time.Second
	return opts
}

// Result holds the outcome of one scenario run
type Result struct {
	Value    interface{}    `json:"value,omitempty"`
	Console  []LogEntry     `json:"console"`
	Events   []events.Event `json:"events"`
	Changes  []dom.Change   `json:"changes,omitempty"`
	Duration time.Duration  `json:"duration"`
	Error    string         `json:"error,omitempty"`
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Advancer moves a virtual clock forward.
type Advancer interface {
	Advance(d time.Duration) int
}
