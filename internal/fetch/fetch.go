// Package fetch provides the rate-limited page fetcher shared by all source
// adapters: per-host request spacing, bounded retry with exponential backoff,
// and an HTTP client tuned for polite scraping.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/monza-lab/auction-ingest/internal/metrics"
)

const (
	connectTimeout  = 3 * time.Second
	headerTimeout   = 12 * time.Second
	idleConnTimeout = 90 * time.Second

	defaultHostInterval = 1000 * time.Millisecond
	defaultMaxBodyBytes = 4 << 20
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// HostLimiter spaces requests so that at least a minimum interval elapses
// between requests to the same host, tracked independently per host.
type HostLimiter struct {
	mu       sync.Mutex
	last     map[string]time.Time
	interval time.Duration
}

func NewHostLimiter(interval time.Duration) *HostLimiter {
	if interval <= 0 {
		interval = defaultHostInterval
	}
	return &HostLimiter{
		last:     make(map[string]time.Time),
		interval: interval,
	}
}

// Wait blocks until the host's interval has elapsed since its previous
// request, then claims the slot. Returns early only on context cancellation.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	now := time.Now()
	next := l.last[host].Add(l.interval)
	if next.Before(now) {
		next = now
	}
	l.last[host] = next
	l.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPolicy bounds WithRetry: up to Retries additional attempts with
// BaseDelay * 2^attempt between them.
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
}

// WithRetry invokes op up to policy.Retries+1 times, re-invoking only while
// shouldRetry holds on the latest result. shouldRetry sees the value as well
// as the error: a successful-but-empty response is a valid retry trigger.
// There is no delay or retry after the final attempt.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error), shouldRetry func(T, error) bool, m *metrics.Metrics) (T, error) {
	var (
		val T
		err error
	)
	for attempt := 0; ; attempt++ {
		val, err = op(ctx)
		if attempt >= policy.Retries || !shouldRetry(val, err) {
			return val, err
		}
		m.RecordRetry()
		delay := policy.BaseDelay << uint(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return val, ctx.Err()
		}
	}
}

// Client is the shared HTTP fetcher. All adapter traffic goes through Get so
// host spacing and telemetry are applied uniformly.
type Client struct {
	hc        *http.Client
	limiter   *HostLimiter
	userAgent string
	maxBody   int64
	metrics   *metrics.Metrics
	retries   atomic.Int64
}

// Retries reports the cumulative retry attempts made through GetWithRetry
// since the client was created. Callers snapshot it to attribute retries to a
// span of work.
func (c *Client) Retries() int64 { return c.retries.Load() }

type ClientOptions struct {
	HostInterval   time.Duration
	RequestTimeout time.Duration
	UserAgent      string
	MaxBodyBytes   int64
	Metrics        *metrics.Metrics
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		hc:        &http.Client{Transport: tr, Timeout: timeout},
		limiter:   NewHostLimiter(opts.HostInterval),
		userAgent: ua,
		maxBody:   maxBody,
		metrics:   opts.Metrics,
	}
}

// Result is one fetch attempt's outcome. Callers decide retryability from the
// status code; a 2xx with an empty body is still a candidate for retry.
type Result struct {
	Body       []byte
	StatusCode int
	RetryAfter time.Duration
}

// Get fetches one URL after waiting for the host's rate slot. Non-2xx
// statuses return an error alongside the populated Result so retry predicates
// can inspect both.
func (c *Client) Get(ctx context.Context, rawURL string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("parse url: %w", err)
	}
	if err := c.limiter.Wait(ctx, u.Host); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.metrics.RecordRequest(0, time.Since(start))
		return Result{}, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	elapsed := time.Since(start)
	c.metrics.RecordRequest(resp.StatusCode, elapsed)

	res := Result{
		Body:       body,
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, fmt.Errorf("fetch %s: http status %d", u.Host, resp.StatusCode)
	}
	return res, nil
}

// GetWithRetry layers the bounded backoff policy over Get, retrying transport
// errors, throttling, and server errors. Retry-After from the server extends
// the backoff when it is longer.
func (c *Client) GetWithRetry(ctx context.Context, rawURL string, policy RetryPolicy) (Result, error) {
	attempt := 0
	op := func(ctx context.Context) (Result, error) {
		if attempt > 0 {
			c.retries.Add(1)
		}
		res, err := c.Get(ctx, rawURL)
		if err != nil && res.RetryAfter > 0 {
			backoff := policy.BaseDelay << uint(attempt)
			if res.RetryAfter > backoff {
				// Sleep out the server-imposed throttle before the
				// retry loop adds its own delay.
				extra := res.RetryAfter - backoff
				timer := time.NewTimer(extra)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
				}
			}
		}
		attempt++
		return res, err
	}
	return WithRetry(ctx, policy, op, func(res Result, err error) bool {
		return RetryableResult(res, err)
	}, c.metrics)
}

// RetryableResult is the default retry predicate: transport failures,
// throttling, request timeouts, and server errors.
func RetryableResult(res Result, err error) bool {
	if err != nil && res.StatusCode == 0 {
		return true
	}
	switch res.StatusCode {
	case http.StatusTooManyRequests, http.StatusForbidden, http.StatusRequestTimeout:
		return true
	}
	return res.StatusCode >= 500 && res.StatusCode <= 599
}

func parseRetryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
