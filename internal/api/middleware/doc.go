// Package middleware provides the gin middleware for the companion API:
// CORS, per-client rate limiting, request logging and panic recovery.
package middleware
