package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compassync/pkg/config"
	errs "compassync/pkg/errors"
	"compassync/pkg/pacing"
	"compassync/pkg/portal"
)

// fakeFetcher serves canned photo bytes per token and can fail specific ones
type fakeFetcher struct {
	failing map[string]bool
	calls   int
}

func (f *fakeFetcher) DownloadPhoto(ctx context.Context, photoToken string, pacer pacing.Pacer, delays []time.Duration) ([]byte, error) {
	f.calls++
	if f.failing[photoToken] {
		return nil, &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "throttled", Code: 429, Attempts: 3}
	}
	return []byte("img:" + photoToken), nil
}

func testEngine(t *testing.T, fetcher *fakeFetcher) (*Engine, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Pacing = config.PacingConfig{}
	cfg.Retry.PhotoDelays = []time.Duration{0}
	cfg.Output.StaffDirectory = filepath.Join(t.TempDir(), "staff")
	cfg.Output.StudentDirectory = filepath.Join(t.TempDir(), "students")
	return NewEngine(fetcher, cfg, nil), cfg
}

func makePeople(n int) []portal.PersonRecord {
	people := make([]portal.PersonRecord, n)
	for i := range people {
		people[i] = portal.PersonRecord{
			Name:        fmt.Sprintf("Person %d", i),
			DisplayCode: fmt.Sprintf("P%03d", i),
			PhotoToken:  fmt.Sprintf("tok%04d_2501010101AM", i),
		}
	}
	return people
}

func TestSyncBatchDownloadsAll(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine, cfg := testEngine(t, fetcher)
	people := makePeople(5)

	stats, err := engine.SyncBatch(context.Background(), people, cfg.Output.StaffDirectory, cfg.Retry.PhotoDelays, "staff")
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalProcessed)
	assert.Equal(t, 5, stats.Downloaded)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)

	files, _ := filepath.Glob(filepath.Join(cfg.Output.StaffDirectory, "*.jpg"))
	assert.Len(t, files, 5)
}

func TestSyncBatchIsolatesFailures(t *testing.T) {
	people := makePeople(10)
	fetcher := &fakeFetcher{failing: map[string]bool{people[4].PhotoToken: true}}
	engine, cfg := testEngine(t, fetcher)

	stats, err := engine.SyncBatch(context.Background(), people, cfg.Output.StaffDirectory, cfg.Retry.PhotoDelays, "staff")
	require.NoError(t, err)

	assert.Equal(t, 10, stats.TotalProcessed)
	assert.Equal(t, 9, stats.Downloaded)
	assert.Equal(t, 1, stats.Failed)
}

func TestSyncBatchIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine, cfg := testEngine(t, fetcher)
	people := makePeople(4)

	_, err := engine.SyncBatch(context.Background(), people, cfg.Output.StaffDirectory, cfg.Retry.PhotoDelays, "staff")
	require.NoError(t, err)
	firstCalls := fetcher.calls

	stats, err := engine.SyncBatch(context.Background(), people, cfg.Output.StaffDirectory, cfg.Retry.PhotoDelays, "staff")
	require.NoError(t, err)

	// Second pass finds every photo current and never hits the network
	assert.Equal(t, 4, stats.TotalProcessed)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, 0, stats.Downloaded)
	assert.Equal(t, firstCalls, fetcher.calls)
}

func TestSyncBatchReplacesStalePhoto(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine, cfg := testEngine(t, fetcher)

	person := portal.PersonRecord{Name: "Jane", DisplayCode: "JDOE", PhotoToken: "oldtoken_2501010101AM"}
	_, err := engine.SyncBatch(context.Background(), []portal.PersonRecord{person}, cfg.Output.StaffDirectory, cfg.Retry.PhotoDelays, "staff")
	require.NoError(t, err)

	person.PhotoToken = "newtoken_2502020202AM"
	stats, err := engine.SyncBatch(context.Background(), []portal.PersonRecord{person}, cfg.Output.StaffDirectory, cfg.Retry.PhotoDelays, "staff")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 0, stats.Downloaded)

	// Exactly one file survives the replacement
	files, _ := filepath.Glob(filepath.Join(cfg.Output.StaffDirectory, "JDOE_*.jpg"))
	require.Len(t, files, 1)
	assert.Equal(t, "JDOE_newtoken_2502020202AM.jpg", filepath.Base(files[0]))
}

func TestSyncBatchAbortsOnCancellation(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine, cfg := testEngine(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.SyncBatch(ctx, makePeople(3), cfg.Output.StaffDirectory, cfg.Retry.PhotoDelays, "staff")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fetcher.calls)
}

func TestRunCombinesPhases(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine, _ := testEngine(t, fetcher)

	staff := makePeople(2)
	students := []portal.PersonRecord{
		{Name: "Amy", DisplayCode: "AST0001", PhotoToken: "stok1_2501010101AM"},
		{Name: "Ben", DisplayCode: "BST0002", PhotoToken: "stok2_2501010101AM"},
		{Name: "Cal", DisplayCode: "CST0003", PhotoToken: "stok3_2501010101AM"},
	}
	dir := &fakeDirectory{staff: staff, students: students}

	result, err := engine.Run(context.Background(), dir, "https://portal.example", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Staff.Downloaded)
	assert.Equal(t, 3, result.Students.Downloaded)
	assert.Equal(t, 5, result.Combined.TotalProcessed)
	assert.True(t, dir.paused, "phases must be separated by a pause")

	assert.Len(t, result.StaffPhotos, 2)
	assert.Equal(t, "https://portal.example/download/secure/cdn/full/stok1_2501010101AM", result.StudentPhotos["AST0001"])
}

func TestRunNoDownload(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine, _ := testEngine(t, fetcher)
	dir := &fakeDirectory{staff: makePeople(3), students: makePeople(2)}

	result, err := engine.Run(context.Background(), dir, "https://portal.example", RunOptions{NoDownload: true})
	require.NoError(t, err)

	assert.Equal(t, 0, fetcher.calls)
	assert.Len(t, result.StaffPhotos, 3)
	assert.Equal(t, 0, result.Combined.TotalProcessed)
}

func TestRunLimit(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine, _ := testEngine(t, fetcher)
	dir := &fakeDirectory{staff: makePeople(10), students: makePeople(10)}

	result, err := engine.Run(context.Background(), dir, "https://portal.example", RunOptions{Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Staff.TotalProcessed)
	assert.Equal(t, 3, result.Students.TotalProcessed)
}

func TestRunStaffOnly(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine, _ := testEngine(t, fetcher)
	dir := &fakeDirectory{staff: makePeople(2), students: makePeople(2)}

	result, err := engine.Run(context.Background(), dir, "https://portal.example", RunOptions{SkipStudents: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Staff.TotalProcessed)
	assert.Equal(t, 0, result.Students.TotalProcessed)
	assert.False(t, dir.paused, "single-phase runs need no inter-phase pause")
	assert.False(t, dir.studentsFetched)
}

// fakeDirectory serves canned listings
type fakeDirectory struct {
	staff           []portal.PersonRecord
	students        []portal.PersonRecord
	paused          bool
	studentsFetched bool
}

func (d *fakeDirectory) FetchStaff(ctx context.Context) ([]portal.PersonRecord, error) {
	return d.staff, nil
}

func (d *fakeDirectory) FetchStudentsRaw(ctx context.Context) ([]portal.PersonRecord, []byte, error) {
	d.studentsFetched = true
	return d.students, []byte(`[]`), nil
}

func (d *fakeDirectory) InterPhasePause(ctx context.Context) error {
	d.paused = true
	return nil
}
