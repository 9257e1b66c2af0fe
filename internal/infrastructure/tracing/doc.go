// Package tracing propagates trace identifiers. The companion server
// assigns one per request, and watched HTTP clients forward it together
// with the id of the watchdog operation that tracks each call.
package tracing
