package sync

import (
	"bytes"
	"context"
	"errors"
	"time"

	"compassync/pkg/cache"
	"compassync/pkg/config"
	"compassync/pkg/logger"
	"compassync/pkg/pacing"
	"compassync/pkg/portal"
)

// PhotoFetcher downloads raw image bytes for a photo version token
type PhotoFetcher interface {
	DownloadPhoto(ctx context.Context, photoToken string, pacer pacing.Pacer, delays []time.Duration) ([]byte, error)
}

// DirectoryClient fetches the portal's staff and student listings
type DirectoryClient interface {
	FetchStaff(ctx context.Context) ([]portal.PersonRecord, error)
	FetchStudentsRaw(ctx context.Context) ([]portal.PersonRecord, []byte, error)
	InterPhasePause(ctx context.Context) error
}

// Engine runs photo synchronization passes: decide per person whether the
// cached photo is current, download what is missing or stale, and keep the
// cache at one file per display code. Downloads are strictly sequential.
type Engine struct {
	photos PhotoFetcher
	cfg    *config.Config
	logger logger.Logger
}

// NewEngine creates a synchronization engine
func NewEngine(photos PhotoFetcher, cfg *config.Config, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{
		photos: photos,
		cfg:    cfg,
		logger: log,
	}
}

// RunOptions narrows a combined run
type RunOptions struct {
	// Limit caps how many people each phase processes; zero means no cap
	Limit int
	// NoDownload collects the photo URL maps without downloading anything
	NoDownload bool
	// SkipStaff and SkipStudents drop a phase entirely
	SkipStaff    bool
	SkipStudents bool
}

// RunResult is the outcome of a combined run
type RunResult struct {
	// StaffPhotos and StudentPhotos map display codes to full photo URLs
	StaffPhotos   map[string]string
	StudentPhotos map[string]string
	Staff         Stats
	Students      Stats
	Combined      Stats
	Duration      time.Duration
	// StudentRaw is the undecoded student response body, kept for debug dumps
	StudentRaw []byte
}

// Run executes the full staff-then-students synchronization over an
// authenticated session, pausing between the two phases
func (e *Engine) Run(ctx context.Context, dir DirectoryClient, baseURL string, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		StaffPhotos:   make(map[string]string),
		StudentPhotos: make(map[string]string),
	}

	if !opts.SkipStaff {
		staff, err := dir.FetchStaff(ctx)
		if err != nil {
			return nil, err
		}
		staff = capPeople(staff, opts.Limit)
		for _, p := range staff {
			result.StaffPhotos[p.DisplayCode] = portal.PhotoURL(baseURL, p.PhotoToken)
		}

		if !opts.NoDownload {
			stats, err := e.SyncBatch(ctx, staff, e.cfg.Output.StaffDirectory, e.cfg.Retry.PhotoDelays, "staff")
			if err != nil {
				return nil, err
			}
			result.Staff = stats
		}
	}

	if !opts.SkipStaff && !opts.SkipStudents {
		if err := dir.InterPhasePause(ctx); err != nil {
			return nil, err
		}
	}

	if !opts.SkipStudents {
		students, raw, err := dir.FetchStudentsRaw(ctx)
		if err != nil {
			return nil, err
		}
		result.StudentRaw = raw
		students = capPeople(students, opts.Limit)
		for _, p := range students {
			result.StudentPhotos[p.DisplayCode] = portal.PhotoURL(baseURL, p.PhotoToken)
		}

		if !opts.NoDownload {
			stats, err := e.SyncBatch(ctx, students, e.cfg.Output.StudentDirectory, e.cfg.Retry.PhotoDelays, "students")
			if err != nil {
				return nil, err
			}
			result.Students = stats
		}
	}

	result.Combined = result.Staff
	result.Combined.Add(result.Students)
	result.Duration = time.Since(start)

	e.logger.InfoWithFields("synchronization run complete", result.Combined.Fields())

	return result, nil
}

// SyncBatch synchronizes one listing into one cache directory. A failed
// person is counted and skipped; only context cancellation aborts the batch.
func (e *Engine) SyncBatch(ctx context.Context, people []portal.PersonRecord, dir string, delays []time.Duration, label string) (Stats, error) {
	var stats Stats

	mgr, err := cache.NewManager(dir)
	if err != nil {
		return stats, err
	}

	e.logger.InfoWithFields("synchronizing photos", map[string]interface{}{
		"category": label,
		"count":    len(people),
		"dir":      dir,
	})

	interval := e.cfg.Notifications.ProgressInterval
	for i, person := range people {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.TotalProcessed++

		outcome, err := e.syncOne(ctx, mgr, person, delays)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			stats.Failed++
			e.logger.WarnWithFields("photo sync failed", map[string]interface{}{
				"category":     label,
				"display_code": person.DisplayCode,
				"error":        err.Error(),
			})
			continue
		}

		switch outcome {
		case cache.DecisionSkip:
			stats.Skipped++
		case cache.DecisionCreate:
			stats.Downloaded++
		case cache.DecisionReplace:
			stats.Updated++
		}

		if interval > 0 && (i+1)%interval == 0 {
			e.logger.InfoWithFields("progress", map[string]interface{}{
				"category":  label,
				"processed": i + 1,
				"total":     len(people),
			})
		}
	}

	e.logger.InfoWithFields("batch complete", mergeFields(stats.Fields(), map[string]interface{}{
		"category": label,
	}))

	return stats, nil
}

// SyncOne synchronizes a single person into a cache directory and reports
// what was done
func (e *Engine) SyncOne(ctx context.Context, person portal.PersonRecord, dir string, delays []time.Duration) (cache.Decision, error) {
	mgr, err := cache.NewManager(dir)
	if err != nil {
		return cache.DecisionSkip, err
	}
	return e.syncOne(ctx, mgr, person, delays)
}

// syncOne decides, downloads if needed, and saves. The save's stale-file
// sweep keeps the replace path down to one cached file.
func (e *Engine) syncOne(ctx context.Context, mgr *cache.Manager, person portal.PersonRecord, delays []time.Duration) (cache.Decision, error) {
	decision, stale, err := mgr.Decide(person.DisplayCode, person.PhotoToken)
	if err != nil {
		return decision, err
	}

	if decision == cache.DecisionSkip {
		e.logger.DebugWithFields("photo current, skipping", map[string]interface{}{
			"display_code": person.DisplayCode,
		})
		return decision, nil
	}

	pacer := pacing.NewJitterPacer(e.cfg.Pacing.DownloadDelay, e.cfg.Pacing.DownloadDelayJitter)
	data, err := e.photos.DownloadPhoto(ctx, person.PhotoToken, pacer, delays)
	if err != nil {
		return decision, err
	}

	filename, err := mgr.SavePhoto(bytes.NewReader(data), person.DisplayCode, person.PhotoToken)
	if err != nil {
		return decision, err
	}

	fields := map[string]interface{}{
		"display_code": person.DisplayCode,
		"file":         filename,
		"bytes":        len(data),
	}
	if decision == cache.DecisionReplace {
		fields["replaced"] = stale
	}
	e.logger.DebugWithFields("photo saved", fields)

	return decision, nil
}

// capPeople truncates a listing to the run limit
func capPeople(people []portal.PersonRecord, limit int) []portal.PersonRecord {
	if limit > 0 && len(people) > limit {
		return people[:limit]
	}
	return people
}

func mergeFields(a, b map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}
