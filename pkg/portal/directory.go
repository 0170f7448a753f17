package portal

import (
	"context"

	"compassync/pkg/config"
	"compassync/pkg/logger"
	"compassync/pkg/pacing"
)

// Directory fetches the staff and student listings over an authenticated
// session. Each listing is fronted by a warm-up page visit, exactly as a
// browser navigates before firing the AJAX call.
type Directory struct {
	session *Session
	pacing  config.PacingConfig
	retry   config.RetryConfig
	logger  logger.Logger
}

// NewDirectory creates a directory client over an authenticated session
func NewDirectory(session *Session, cfg *config.Config, log logger.Logger) *Directory {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Directory{
		session: session,
		pacing:  cfg.Pacing,
		retry:   cfg.Retry,
		logger:  log,
	}
}

// FetchStaff returns the staff listing, one record per staff member with a
// photo. The raw response also holds staff without photos; those are
// filtered out before this returns.
func (d *Directory) FetchStaff(ctx context.Context) ([]PersonRecord, error) {
	base := d.session.BaseURL()

	if err := d.warmUp(ctx, StaffWarmupURL(base)); err != nil {
		return nil, err
	}

	d.logger.Debug("fetching staff directory")
	body, err := d.session.do(ctx, Request{
		Method:  "POST",
		URL:     StaffListURL(base),
		Body:    "{}",
		Headers: apiHeaders(d.session.userAgent, base, StaffWarmupURL(base)),
		Delays:  d.retry.APIDelays,
	})
	if err != nil {
		return nil, err
	}

	return d.parse(body, "staff")
}

// FetchStudents returns the student listing. The student payload is the
// heaviest call the portal serves, so it runs on its own longer delay table.
func (d *Directory) FetchStudents(ctx context.Context) ([]PersonRecord, error) {
	people, _, err := d.FetchStudentsRaw(ctx)
	return people, err
}

// FetchStudentsRaw additionally returns the raw response body for debug
// dumping
func (d *Directory) FetchStudentsRaw(ctx context.Context) ([]PersonRecord, []byte, error) {
	base := d.session.BaseURL()

	if err := d.warmUp(ctx, StudentWarmupURL(base)); err != nil {
		return nil, nil, err
	}

	d.logger.Debug("fetching student directory")
	body, err := d.session.do(ctx, Request{
		Method:  "POST",
		URL:     StudentListURL(base),
		Body:    `{"includePhotos": true}`,
		Headers: apiHeaders(d.session.userAgent, base, StudentWarmupURL(base)),
		Delays:  d.retry.StudentDelays,
	})
	if err != nil {
		return nil, nil, err
	}

	people, err := d.parse(body, "students")
	if err != nil {
		return nil, nil, err
	}
	return people, body, nil
}

// warmUp visits a human-navigable page to mint fresh session tokens, then
// pauses before the API call that follows
func (d *Directory) warmUp(ctx context.Context, pageURL string) error {
	d.logger.DebugWithFields("warming up session", map[string]interface{}{
		"url": pageURL,
	})

	_, err := d.session.do(ctx, Request{
		Method:  "GET",
		URL:     pageURL,
		Headers: pageHeaders(d.session.userAgent),
		Pacer:   pacing.NewJitterPacer(d.pacing.RequestDelay, d.pacing.RequestDelayJitter),
		Delays:  d.retry.APIDelays,
	})
	if err != nil {
		return err
	}

	// Pause before the API call, as a human pauses between page load and
	// interaction
	return pacing.NewJitterPacer(d.pacing.WarmupDelay, d.pacing.WarmupDelayJitter).Pause(ctx)
}

// parse decodes and normalizes a directory response
func (d *Directory) parse(body []byte, label string) ([]PersonRecord, error) {
	raw, err := decodePeople(body)
	if err != nil {
		return nil, err
	}

	people := normalizePeople(raw)
	d.logger.InfoWithFields("directory fetched", map[string]interface{}{
		"category":    label,
		"entries":     len(raw),
		"with_photos": len(people),
	})
	return people, nil
}

// InterPhasePause separates the staff phase from the student phase of a
// combined run
func (d *Directory) InterPhasePause(ctx context.Context) error {
	return pacing.NewJitterPacer(d.pacing.PhaseDelay, d.pacing.PhaseDelayJitter).Pause(ctx)
}
