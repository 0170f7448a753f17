package portal

import (
	"context"
	"time"

	"compassync/pkg/pacing"
)

// Session is an authenticated portal session. The cookie state lives in the
// wrapped transport and mutates internally as the portal refreshes tokens;
// callers treat the value as read-only and must not share it across
// concurrent runs.
type Session struct {
	transport *Transport
	baseURL   string
	userAgent string
}

// BaseURL returns the normalized portal base URL
func (s *Session) BaseURL() string {
	return s.baseURL
}

// do executes a request on the session's transport
func (s *Session) do(ctx context.Context, req Request) ([]byte, error) {
	return s.transport.Do(ctx, req)
}

// DownloadPhoto fetches the raw image bytes for a photo version token
func (s *Session) DownloadPhoto(ctx context.Context, photoToken string, pacer pacing.Pacer, delays []time.Duration) ([]byte, error) {
	return s.transport.Do(ctx, Request{
		Method:  "GET",
		URL:     PhotoURL(s.baseURL, photoToken),
		Headers: photoHeaders(s.userAgent),
		Pacer:   pacer,
		Delays:  delays,
	})
}
