package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "compassync/pkg/errors"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "throttled", Code: 429}
		}
		return nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustionTagsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "throttled", Code: 429}
	}, testConfig(3))

	if calls != 3 {
		t.Errorf("calls = %d, want exactly 3", calls)
	}

	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if apiErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", apiErr.Attempts)
	}
	if apiErr.Type != errs.ErrorTypeRateLimit {
		t.Errorf("Type = %v, want rate_limit", apiErr.Type)
	}
}

func TestDoNonRetryableStopsImmediately(t *testing.T) {
	tests := []struct {
		name    string
		errType errs.ErrorType
	}{
		{"auth error", errs.ErrorTypeAuth},
		{"server error", errs.ErrorTypeServerError},
		{"structural error", errs.ErrorTypeStructural},
		{"parsing error", errs.ErrorTypeParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(func() error {
				calls++
				return &errs.Error{Type: tt.errType, Message: "boom"}
			}, testConfig(3))

			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
			var apiErr *errs.Error
			if !errors.As(err, &apiErr) || apiErr.Type != tt.errType {
				t.Errorf("unexpected error: %v", err)
			}
			if apiErr.Attempts != 0 {
				t.Errorf("Attempts = %d, want 0 for non-retried error", apiErr.Attempts)
			}
		})
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &DelayTable{Delays: []time.Duration{time.Hour}},
		RetryIf:     DefaultRetryIf,
		Context:     ctx,
	}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(func() error {
			calls++
			return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "down"}
		}, cfg)
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(func() (string, error) {
		calls++
		if calls < 2 {
			return "", &errs.Error{Type: errs.ErrorTypeNetwork, Message: "down"}
		}
		return "payload", nil
	}, testConfig(3))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "payload" {
		t.Errorf("result = %q", result)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	if DefaultRetryIf(nil) {
		t.Error("nil error should not retry")
	}
	if !DefaultRetryIf(&errs.Error{Type: errs.ErrorTypeRateLimit}) {
		t.Error("rate_limit should retry")
	}
	if !DefaultRetryIf(&errs.Error{Type: errs.ErrorTypeNetwork}) {
		t.Error("network should retry")
	}
	if DefaultRetryIf(&errs.Error{Type: errs.ErrorTypeServerError}) {
		t.Error("server_error should not retry")
	}
	if DefaultRetryIf(context.Canceled) {
		t.Error("context.Canceled should not retry")
	}
	if !DefaultRetryIf(errors.New("plain error")) {
		t.Error("unclassified errors are treated as transient")
	}
}

func TestDelayTable(t *testing.T) {
	table := &DelayTable{Delays: []time.Duration{
		5 * time.Second, 15 * time.Second, 30 * time.Second,
	}}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 5 * time.Second},
		{2, 15 * time.Second},
		{3, 30 * time.Second},
		{4, 30 * time.Second}, // clamps to last entry
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := table.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	empty := &DelayTable{}
	if got := empty.NextDelay(1); got != 0 {
		t.Errorf("empty table NextDelay(1) = %v, want 0", got)
	}
}

func TestExponentialBackoff(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}

	if got := eb.NextDelay(1); got != time.Second {
		t.Errorf("NextDelay(1) = %v, want 1s", got)
	}
	if got := eb.NextDelay(2); got != 2*time.Second {
		t.Errorf("NextDelay(2) = %v, want 2s", got)
	}
	if got := eb.NextDelay(20); got != 10*time.Second {
		t.Errorf("NextDelay(20) = %v, want capped 10s", got)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("zero delay should return immediately, got %v", err)
	}
}

// testConfig builds a config with instant delays
func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &DelayTable{Delays: []time.Duration{0}},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}
}
