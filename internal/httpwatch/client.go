package httpwatch

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientOptions configure a watched client.
type ClientOptions struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RequestsPerSecond limits outgoing requests; zero means unlimited.
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	Breaker           BreakerSettings
	// Now drives the breaker clock; nil selects time.Now.
	Now    func() time.Time
	Base   http.RoundTripper
	Logger *zap.Logger
}

// DefaultClientOptions returns options suited to a course API backend.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:      60 * time.Second,
		RetryMax:     2,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		UserAgent:    "freezeguard/1.0",
		Breaker: BreakerSettings{
			Threshold: 5,
			Cooldown:  30 * time.Second,
			Probes:    1,
		},
	}
}

// Client wraps resty and retryablehttp over a watched transport. Every
// attempt, including retries, is tracked as its own operation.
type Client struct {
	Resty   *resty.Client
	Retry   *retryablehttp.Client
	Limiter *rate.Limiter
	Breaker *Breaker
}

// NewClient creates a client whose requests are tracked by tracker.
func NewClient(tracker Tracker, opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := NewBreaker(opts.Breaker, opts.Now)
	if opts.Breaker.OnStateChange == nil {
		breaker.settings.OnStateChange = func(from, to BreakerState) {
			logger.Warn("backend circuit breaker changed state",
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		}
	}

	watched := &Transport{
		Base:    opts.Base,
		Tracker: tracker,
		Breaker: breaker,
		Logger:  logger,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = watched
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil // Disable logging
	retryClient.CheckRetry = checkRetry

	restyClient := resty.New()
	restyClient.
		SetTimeout(opts.Timeout).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})
	if opts.UserAgent != "" {
		restyClient.SetHeader("User-Agent", opts.UserAgent)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		Resty:   restyClient,
		Retry:   retryClient,
		Limiter: rate.NewLimiter(limit, opts.Burst),
		Breaker: breaker,
	}
}

// checkRetry never retries a request the watchdog or the breaker stopped.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if IsWatchdogCancel(err) || errorsIsBreaker(err) {
		return false, err
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Get performs a rate-limited GET.
func (c *Client) Get(ctx context.Context, url string) (*resty.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Resty.R().SetContext(ctx).Get(url)
}

// Post performs a rate-limited POST with a JSON body.
func (c *Client) Post(ctx context.Context, url string, body interface{}) (*resty.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Resty.R().SetContext(ctx).SetBody(body).Post(url)
}

// Do performs a rate-limited request with any method. A nil body sends
// none.
func (c *Client) Do(ctx context.Context, method, url string, body interface{}) (*resty.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req := c.Resty.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return req.Execute(method, url)
}

// StandardClient returns a plain *http.Client with retries and tracking.
func (c *Client) StandardClient() *http.Client {
	return c.Retry.StandardClient()
}
