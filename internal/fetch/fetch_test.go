package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithRetryStopsOnSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	}
	policy := RetryPolicy{Retries: 5, BaseDelay: time.Millisecond}
	got, err := WithRetry(context.Background(), policy, op, func(_ int, err error) bool {
		return err != nil
	}, nil)
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	t.Parallel()

	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("always")
	}
	policy := RetryPolicy{Retries: 2, BaseDelay: time.Millisecond}
	_, err := WithRetry(context.Background(), policy, op, func(_ int, err error) bool {
		return err != nil
	}, nil)
	if err == nil {
		t.Fatal("want error after exhausted budget")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want initial + 2 retries", calls)
	}
}

func TestWithRetryValuePredicate(t *testing.T) {
	t.Parallel()

	// An error-free but empty result is a valid retry trigger.
	calls := 0
	op := func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", nil
		}
		return "body", nil
	}
	policy := RetryPolicy{Retries: 3, BaseDelay: time.Millisecond}
	got, err := WithRetry(context.Background(), policy, op, func(v string, err error) bool {
		return err == nil && v == ""
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "body" || calls != 2 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestWithRetryCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op := func(ctx context.Context) (int, error) {
		return 0, errors.New("transient")
	}
	policy := RetryPolicy{Retries: 3, BaseDelay: time.Hour}
	_, err := WithRetry(ctx, policy, op, func(_ int, err error) bool {
		return err != nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestHostLimiterSpacing(t *testing.T) {
	t.Parallel()

	interval := 50 * time.Millisecond
	l := NewHostLimiter(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, "a.example"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("three requests took %v, want at least %v", elapsed, 2*interval)
	}
}

func TestHostLimiterIndependentHosts(t *testing.T) {
	t.Parallel()

	l := NewHostLimiter(time.Second)
	ctx := context.Background()

	if err := l.Wait(ctx, "a.example"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "b.example"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("different host waited %v behind another host's slot", elapsed)
	}
}

func TestRetryableResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  Result
		err  error
		want bool
	}{
		{"transport error", Result{}, errors.New("dial"), true},
		{"throttled", Result{StatusCode: 429}, errors.New("status"), true},
		{"forbidden", Result{StatusCode: 403}, errors.New("status"), true},
		{"timeout", Result{StatusCode: 408}, errors.New("status"), true},
		{"server error", Result{StatusCode: 503}, errors.New("status"), true},
		{"not found", Result{StatusCode: 404}, errors.New("status"), false},
		{"ok", Result{StatusCode: 200}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RetryableResult(tt.res, tt.err); got != tt.want {
				t.Errorf("RetryableResult(%d, %v) = %v, want %v", tt.res.StatusCode, tt.err, got, tt.want)
			}
		})
	}
}

func TestGetWithRetryRecovers(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{HostInterval: time.Millisecond})
	res, err := c.GetWithRetry(context.Background(), srv.URL, RetryPolicy{Retries: 3, BaseDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("GetWithRetry: %v", err)
	}
	if string(res.Body) != "payload" {
		t.Errorf("body = %q", res.Body)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
	if got := c.Retries(); got != 2 {
		t.Errorf("Retries() = %d, want 2", got)
	}
}

func TestGetNonRetryableStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{HostInterval: time.Millisecond})
	_, err := c.GetWithRetry(context.Background(), srv.URL, RetryPolicy{Retries: 3, BaseDelay: time.Millisecond})
	if err == nil {
		t.Fatal("want error for 404")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want no retries on 404", got)
	}
}
