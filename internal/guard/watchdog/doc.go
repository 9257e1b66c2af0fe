/*
Package watchdog keeps a registry of in-flight network operations and
cancels the ones that hang.

Every tracked operation carries a context that is cancelled, with a cause,
when the operation is reaped, aborted, or pushed out by the concurrency
limit. Removal from the registry happens before cancellation and under the
registry lock, so an operation is cancelled at most once no matter how
reaping, AbortAll and Complete interleave.

# Usage

	op := w.Track(ctx, "GET /api/courses")
	defer op.Complete()

	req, _ := http.NewRequestWithContext(op.Context(), http.MethodGet, url, nil)
	resp, err := client.Do(req)
	if errors.Is(context.Cause(op.Context()), watchdog.ErrOperationTimeout) {
		// the reaper gave up on this request
	}
*/
package watchdog
