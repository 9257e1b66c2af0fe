/*
Package httpwatch connects outgoing HTTP traffic to the request watchdog.

Transport tracks each request as a watchdog operation and runs it under
the operation's context, so a request the reaper gives up on, or one
cancelled by a soft recovery, is cancelled on the wire and surfaces as an
error wrapping watchdog.ErrOperationTimeout or watchdog.ErrAborted.

Client layers the usual production concerns on top: retries through
go-retryablehttp (never for watchdog cancellations), a resty front end, a
token bucket rate limiter, and a circuit breaker that stops new requests
from piling up behind a backend that keeps hanging.

# Usage

	client := httpwatch.NewClient(g.Watchdog(), httpwatch.DefaultClientOptions())
	resp, err := client.Get(ctx, "https://api.example.com/courses")
	if httpwatch.IsWatchdogCancel(err) {
		// hung request reaped or aborted by recovery
	}
*/
package httpwatch
