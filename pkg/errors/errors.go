package errors

import "fmt"

// ErrorType classifies portal errors for retry and reporting decisions
type ErrorType string

const (
	// ErrorTypeAccess means the portal itself was unreachable: a WAF or IP
	// block, not bad credentials. Surfaced when the login page cannot be
	// loaded even after retries.
	ErrorTypeAccess ErrorType = "access"
	// ErrorTypeAuth means the portal answered but rejected the credentials
	// (or the response carried no authenticated content).
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeStructural means an expected HTML form or JSON field is
	// missing: the portal's page shape changed. Never retried.
	ErrorTypeStructural ErrorType = "structural"
	// ErrorTypeRateLimit covers 403 and 429. On this portal both are issued
	// by the bot-mitigation layer for non-human traffic, so they are
	// throttling signals rather than terminal denials.
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a portal operation error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// Attempts is set when a retryable error survived the full retry budget
	Attempts int
}

func (e *Error) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%s error (code %d) after %d attempts: %s", e.Type, e.Code, e.Attempts, e.Message)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable
// error. Only the bot-mitigation statuses retry; every other error status
// propagates immediately.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 403, 429:
		return true
	default:
		return false
	}
}
