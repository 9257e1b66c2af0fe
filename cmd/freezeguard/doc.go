// Command freezeguard sweeps captured pages, replays freeze scenarios on a
// virtual clock and runs the companion server for a live guard.
//
// Usage:
//
//	freezeguard sweep page.html --html
//	freezeguard replay page.html scenario.js
//	freezeguard serve page.html --port 8000
//
// Configuration comes from GUARD_*, LOG_* and server environment
// variables, optionally overlaid by --config with a YAML or TOML file.
package main
