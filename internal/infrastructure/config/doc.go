// Package config provides 12-factor configuration for the guard.
//
// Configuration is loaded from environment variables with sensible defaults
// and may be overlaid by a YAML or TOML file passed on the command line.
//
// Configuration Sections:
//   - Guard: watchdog thresholds, recovery budget, intervals, debug mode
//   - Logging: log level
//   - Server: companion HTTP server address
//   - RateLimit: API rate limiting
//
// Environment Variables:
//   - GUARD_MAX_PENDING_TIME, GUARD_MAX_CONCURRENT_REQUESTS, GUARD_TIMEOUT_DELAY
//   - GUARD_MAX_RECOVERY_ATTEMPTS, GUARD_ENABLE_FORCE_RELOAD, GUARD_ENABLE_STATE_RESET
//   - GUARD_DEBUG, LOG_LEVEL, PORT, HOST, RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
