// Package logging provides structured logging for the guard using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Debug: colored console output at debug level, selected by the guard's
//     debug mode option
//
// Every guard subsystem receives a named child logger ("sweeper", "modal",
// "watchdog", ...) so log lines can be filtered per component.
//
// Example Usage:
//
//	logger := logging.NewForMode("info", cfg.Guard.DebugMode)
//	logger.Component("watchdog").Info("operation reaped", zap.String("label", label))
package logging
