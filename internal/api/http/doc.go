// Package http serves the companion REST API. Pages and devtools post
// activity, renders and fallback triggers to it, and read guard stats.
package http
