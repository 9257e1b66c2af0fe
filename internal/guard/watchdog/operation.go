package watchdog

import (
	"context"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
)

// Operation is one tracked network call.
type Operation struct {
	ID        id.OperationID
	Label     string
	StartedAt time.Time

	ctx      context.Context
	cancel   context.CancelCauseFunc
	onCancel func(cause error)
	w        *Watchdog
}

// TrackOption customizes a tracked operation.
type TrackOption func(*Operation)

// WithCancelHook runs fn when the watchdog cancels the operation. It is
// not run on Complete.
func WithCancelHook(fn func(cause error)) TrackOption {
	return func(op *Operation) {
		op.onCancel = fn
	}
}

// Context is the cancellation signal for the operation.
func (op *Operation) Context() context.Context { return op.ctx }

// Done is closed once the operation is completed or cancelled.
func (op *Operation) Done() <-chan struct{} { return op.ctx.Done() }

// Err returns why the operation ended, nil while pending. A completed
// operation reports context.Canceled.
func (op *Operation) Err() error {
	if op.ctx.Err() == nil {
		return nil
	}
	return context.Cause(op.ctx)
}

// Complete removes the operation from the registry. Calls after the
// first, or after the watchdog cancelled the operation, return false.
func (op *Operation) Complete() bool {
	return op.w.complete(op)
}

// Cancel aborts the operation explicitly.
func (op *Operation) Cancel() bool {
	return op.w.Cancel(op.ID)
}
