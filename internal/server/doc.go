// Package server assembles the companion HTTP server: REST handlers, the
// WebSocket event stream and a Prometheus /metrics endpoint around one
// running guard.
//
// Example Usage:
//
//	srv := server.NewServer(cfg, g, logger)
//	defer srv.Close()
//	err := srv.Run(ctx)
package server
