package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries = %d, want positive", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval = %v, want positive", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Errorf("MaxInterval = %v, want >= InitialInterval %v", cfg.MaxInterval, cfg.InitialInterval)
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit", err: errors.New("rate limit exceeded for model"), want: true},
		{name: "quota", err: errors.New("quota exceeded"), want: true},
		{name: "http 429", err: errors.New("googleapi: Error 429"), want: true},
		{name: "http 500", err: errors.New("upstream returned 500"), want: true},
		{name: "http 502", err: errors.New("502 bad gateway"), want: true},
		{name: "unavailable", err: errors.New("backend unavailable"), want: true},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: true},
		{name: "io timeout", err: errors.New("dial tcp: i/o timeout"), want: true},
		{name: "uppercase still matches", err: errors.New("TEMPORARY failure in name resolution"), want: true},
		{name: "bad api key", err: errors.New("API key not valid"), want: false},
		{name: "http 400", err: errors.New("400 bad request"), want: false},
		{name: "permission denied", err: errors.New("permission denied"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       string
		substrs []string
		want    bool
	}{
		{name: "empty string", s: "", substrs: []string{"x"}, want: false},
		{name: "no substrings", s: "anything", substrs: nil, want: false},
		{name: "first matches", s: "connection reset by peer", substrs: []string{"connection reset", "timeout"}, want: true},
		{name: "later matches", s: "request timeout", substrs: []string{"connection reset", "timeout"}, want: true},
		{name: "case folded", s: "Rate Limit Hit", substrs: []string{"rate limit"}, want: true},
		{name: "nothing matches", s: "all good", substrs: []string{"bad", "worse"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := containsAny(tt.s, tt.substrs...); got != tt.want {
				t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.substrs, got, tt.want)
			}
		})
	}
}

// TestExecuteWithRetry drives the retry loop against a registered mock
// model, so backoff, giving up, and the no-retry path are all exercised
// through the real genkit call.
func TestExecuteWithRetry(t *testing.T) {
	t.Parallel()

	fast := RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     4 * time.Millisecond,
	}

	newRetryAgent := func(t *testing.T, model *scriptedModel) *Agent {
		t.Helper()
		return &Agent{
			g:           newTestGenkit(t, model),
			modelName:   testModelName,
			retryConfig: fast,
			rateLimiter: rate.NewLimiter(rate.Inf, 0),
			logger:      log.NewNop(),
		}
	}

	genOpts := []ai.GenerateOption{
		ai.WithModelName(testModelName),
		ai.WithPrompt("ping"),
	}

	t.Run("first attempt succeeds", func(t *testing.T) {
		t.Parallel()

		model := &scriptedModel{replyText: "pong"}
		a := newRetryAgent(t, model)

		resp, err := a.executeWithRetry(context.Background(), genOpts)
		if err != nil {
			t.Fatalf("executeWithRetry() unexpected error: %v", err)
		}
		if resp.Text() != "pong" {
			t.Errorf("Text() = %q, want %q", resp.Text(), "pong")
		}
		if model.calls != 1 {
			t.Errorf("model calls = %d, want 1", model.calls)
		}
	})

	t.Run("transient failures are retried until success", func(t *testing.T) {
		t.Parallel()

		model := &scriptedModel{
			replyText: "pong",
			failures:  2,
			failErr:   errors.New("429 resource exhausted"),
		}
		a := newRetryAgent(t, model)

		resp, err := a.executeWithRetry(context.Background(), genOpts)
		if err != nil {
			t.Fatalf("executeWithRetry() unexpected error: %v", err)
		}
		if resp.Text() != "pong" {
			t.Errorf("Text() = %q, want %q", resp.Text(), "pong")
		}
		if model.calls != 3 {
			t.Errorf("model calls = %d, want 3 (2 failures + 1 success)", model.calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()

		model := &scriptedModel{
			failures: -1,
			failErr:  errors.New("503 service unavailable"),
		}
		a := newRetryAgent(t, model)

		_, err := a.executeWithRetry(context.Background(), genOpts)
		if err == nil {
			t.Fatal("executeWithRetry() expected error, got nil")
		}
		if !strings.Contains(err.Error(), "after 2 retries") {
			t.Errorf("error = %q, want to mention giving up after 2 retries", err)
		}
		if model.calls != 3 {
			t.Errorf("model calls = %d, want 3 (initial + 2 retries)", model.calls)
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		t.Parallel()

		model := &scriptedModel{
			failures: -1,
			failErr:  errors.New("API key not valid"),
		}
		a := newRetryAgent(t, model)

		_, err := a.executeWithRetry(context.Background(), genOpts)
		if err == nil {
			t.Fatal("executeWithRetry() expected error, got nil")
		}
		if model.calls != 1 {
			t.Errorf("model calls = %d, want 1 (no retries)", model.calls)
		}
	})
}
