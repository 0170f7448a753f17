package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"compassync/pkg/config"
	errs "compassync/pkg/errors"
	"compassync/pkg/logger"
	"compassync/pkg/pacing"
)

// authMarkers are content signatures of an authenticated portal page. The
// login POST returns 200 either way; only the body tells success from
// failure.
var authMarkers = []string{
	"Home | Compass",
	"productNavBar",
	"Compass.mfeConfig",
}

// Authenticator performs the browser-style two-step login: fetch the login
// page, scrape its form, submit credentials, and verify the response carries
// authenticated content.
type Authenticator struct {
	transport *Transport
	baseURL   string
	username  string
	password  string
	userAgent string
	pacing    config.PacingConfig
	apiDelays []time.Duration
	logger    logger.Logger
}

// NewAuthenticator creates an authenticator bound to a transport
func NewAuthenticator(transport *Transport, cfg *config.Config, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Authenticator{
		transport: transport,
		baseURL:   NormalizeBaseURL(cfg.Portal.BaseURL),
		username:  cfg.Portal.Username,
		password:  cfg.Portal.Password,
		userAgent: cfg.Portal.UserAgent,
		pacing:    cfg.Pacing,
		apiDelays: cfg.Retry.APIDelays,
		logger:    log,
	}
}

// Login walks the state machine: fetch login page, parse form, submit
// credentials, classify the result. On success the returned session reuses
// this authenticator's transport, cookies included.
func (a *Authenticator) Login(ctx context.Context) (*Session, error) {
	loginURL := LoginURL(a.baseURL)

	a.logger.InfoWithFields("authenticating with portal", map[string]interface{}{
		"url": loginURL,
	})

	// The login page GET is not authentication yet: a failure here is an
	// access problem (WAF, IP block), never a credential problem.
	pageBody, err := a.transport.Do(ctx, Request{
		Method:  "GET",
		URL:     loginURL,
		Headers: pageHeaders(a.userAgent),
		Pacer:   pacing.Fixed(a.pacing.InitialDelay),
		Delays:  a.apiDelays,
	})
	if err != nil {
		return nil, asAccessError(err, loginURL)
	}

	payload, err := scrapeLoginForm(pageBody)
	if err != nil {
		return nil, err
	}
	payload.Set("username", a.username)
	payload.Set("password", a.password)

	// Fixed wait between page load and submit; humans do not POST the
	// instant a page renders
	if err := pacing.Fixed(a.pacing.PostLoginDelay).Pause(ctx); err != nil {
		return nil, err
	}

	respBody, err := a.transport.Do(ctx, Request{
		Method:  "POST",
		URL:     loginURL,
		Body:    payload.Encode(),
		Headers: loginSubmitHeaders(a.userAgent, loginURL, a.baseURL),
		Delays:  a.apiDelays,
	})
	if err != nil {
		return nil, asAccessError(err, loginURL)
	}

	if !containsAuthMarker(respBody) {
		a.logger.Error("login response carried no authenticated content")
		return nil, &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "login failed: wrong credentials or no authenticated content in response",
		}
	}

	a.logger.Info("portal authentication succeeded")

	return &Session{
		transport: a.transport,
		baseURL:   a.baseURL,
		userAgent: a.userAgent,
	}, nil
}

// scrapeLoginForm extracts a submission payload from the first form on the
// login page, preserving server-supplied hidden and anti-forgery values
// verbatim
func scrapeLoginForm(page []byte) (url.Values, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeStructural,
			Message: fmt.Sprintf("failed to parse login page: %v", err),
		}
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeStructural,
			Message: "no login form found",
		}
	}

	payload := url.Values{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		payload.Set(name, input.AttrOr("value", ""))
	})

	return payload, nil
}

// containsAuthMarker reports whether the body holds any authenticated-page
// signature
func containsAuthMarker(body []byte) bool {
	text := string(body)
	for _, marker := range authMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// asAccessError reclassifies exhausted throttling or network failures on the
// login flow as access errors, keeping them distinguishable from credential
// failures
func asAccessError(err error, loginURL string) error {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) && (apiErr.Type == errs.ErrorTypeRateLimit || apiErr.Type == errs.ErrorTypeNetwork) {
		return &errs.Error{
			Type:     errs.ErrorTypeAccess,
			Message:  fmt.Sprintf("login page could not be loaded; access/network issue (WAF or IP block), not wrong credentials: %s", loginURL),
			Code:     apiErr.Code,
			Attempts: apiErr.Attempts,
		}
	}
	return err
}
