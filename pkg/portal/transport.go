package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	errs "compassync/pkg/errors"
	"compassync/pkg/logger"
	"compassync/pkg/pacing"
	"compassync/pkg/retry"
)

// Transport executes single logical portal operations with human-like
// pacing, bounded retries, and status-aware error classification. All
// session state (cookies) lives in the underlying client's jar, so the same
// Transport must back the login and every later call of a run.
type Transport struct {
	client      *http.Client
	logger      logger.Logger
	maxAttempts int
}

// Request describes one logical HTTP operation
type Request struct {
	Method  string
	URL     string
	Body    string
	Headers map[string]string
	// Pacer runs once before the first attempt; nil skips the pre-request
	// pause (the credential POST relies on this)
	Pacer pacing.Pacer
	// Delays is the escalating retry table for this request class
	Delays []time.Duration
}

// NewTransport creates a transport with a fresh cookie jar
func NewTransport(timeout time.Duration, maxAttempts int, log logger.Logger) (*Transport, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Transport{
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger:      log,
		maxAttempts: maxAttempts,
	}, nil
}

// Do executes the request with pacing and retries, returning the full
// response body. Only 403/429 and connection-level failures retry; every
// other error status propagates immediately.
func (t *Transport) Do(ctx context.Context, req Request) ([]byte, error) {
	if req.Pacer != nil {
		if err := req.Pacer.Pause(ctx); err != nil {
			return nil, err
		}
	}

	cfg := &retry.Config{
		MaxAttempts: t.maxAttempts,
		Backoff:     &retry.DelayTable{Delays: req.Delays},
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      t.logger,
	}

	return retry.DoWithResult(func() ([]byte, error) {
		return t.roundTrip(ctx, req)
	}, cfg)
}

// roundTrip performs one attempt
func (t *Transport) roundTrip(ctx context.Context, req Request) ([]byte, error) {
	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	t.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL,
	})

	resp, err := t.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL,
			"error":    err.Error(),
			"duration": duration,
		})
		// Timeouts and connection errors both land here; the transport
		// treats them uniformly as transient
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}
	defer resp.Body.Close()

	t.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := t.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return body, nil
}

// checkResponseStatus maps HTTP statuses to typed errors
func (t *Transport) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		// Bot-mitigation throttling, not an authorization verdict
		t.logger.WarnWithFields("request throttled by bot mitigation", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "throttled by bot mitigation",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusUnauthorized:
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		t.logger.ErrorWithFields("portal server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "portal server error",
			Code:    resp.StatusCode,
		}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}
