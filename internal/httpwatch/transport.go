package httpwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/GriffinCanCode/freezeguard/internal/guard/watchdog"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/tracing"
	"go.uber.org/zap"
)

// Tracker registers operations with a request watchdog.
type Tracker interface {
	Track(ctx context.Context, label string, opts ...watchdog.TrackOption) *watchdog.Operation
}

// Transport is an http.RoundTripper that tracks every request in the
// watchdog. The request runs under the operation's context, so reaping or
// AbortAll cancels it on the wire. The operation completes when the
// response body is closed or fully read.
type Transport struct {
	Base    http.RoundTripper
	Tracker Tracker
	// Breaker is optional.
	Breaker *Breaker
	Logger  *zap.Logger
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Breaker != nil {
		if err := t.Breaker.Allow(); err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, err)
		}
	}

	op := t.Tracker.Track(req.Context(), Label(req))
	out := req.Clone(op.Context())
	tracing.Inject(out, op.ID.String())
	resp, err := t.base().RoundTrip(out)
	if err != nil {
		cause := watchdogCause(op)
		op.Complete()
		t.record(false)
		if cause != nil {
			t.logger().Debug("request cancelled by watchdog",
				zap.String("label", op.Label),
				zap.Error(cause))
			return nil, fmt.Errorf("%w: %v", cause, err)
		}
		return nil, err
	}

	t.record(resp.StatusCode < http.StatusInternalServerError)
	resp.Body = &trackedBody{ReadCloser: resp.Body, op: op}
	return resp, nil
}

// Label names a request in the watchdog registry.
func Label(req *http.Request) string {
	return req.Method + " " + req.URL.Path
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *zap.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return zap.NewNop()
}

func (t *Transport) record(success bool) {
	if t.Breaker != nil {
		t.Breaker.Record(success)
	}
}

// watchdogCause returns the watchdog error that cancelled op, if any.
func watchdogCause(op *watchdog.Operation) error {
	cause := op.Err()
	for _, target := range []error{watchdog.ErrOperationTimeout, watchdog.ErrAborted, watchdog.ErrOverflow} {
		if errors.Is(cause, target) {
			return cause
		}
	}
	return nil
}

// IsWatchdogCancel reports whether err comes from a request the watchdog
// cancelled.
func IsWatchdogCancel(err error) bool {
	return errors.Is(err, watchdog.ErrOperationTimeout) ||
		errors.Is(err, watchdog.ErrAborted) ||
		errors.Is(err, watchdog.ErrOverflow)
}

// trackedBody completes its operation on EOF or Close, whichever is first.
type trackedBody struct {
	io.ReadCloser
	op   *watchdog.Operation
	once sync.Once
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == io.EOF {
		b.complete()
	} else if err != nil {
		if cause := watchdogCause(b.op); cause != nil {
			err = fmt.Errorf("%w: %v", cause, err)
		}
	}
	return n, err
}

func (b *trackedBody) Close() error {
	b.complete()
	return b.ReadCloser.Close()
}

func (b *trackedBody) complete() {
	b.once.Do(func() { b.op.Complete() })
}
