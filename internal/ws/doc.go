// Package ws streams guard events to devtools and supervisors over
// WebSocket. Each connection is a channel subscriber on the event bus; a
// slow client drops events instead of stalling publishers.
package ws
