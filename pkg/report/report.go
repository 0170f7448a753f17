// Package report writes run artifacts: the machine-readable summary of a
// synchronization run and optional debug dumps of raw portal responses.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"compassync/pkg/sync"
)

// Summary is the JSON document written after a combined run
type Summary struct {
	GeneratedAt     time.Time         `json:"generated_at"`
	DurationSeconds float64           `json:"duration_seconds"`
	StaffPhotos     map[string]string `json:"staff_photos"`
	StudentPhotos   map[string]string `json:"student_photos"`
	DownloadStats   DownloadStats     `json:"download_stats"`
}

// DownloadStats breaks the run counters out per phase
type DownloadStats struct {
	Staff    sync.Stats `json:"staff"`
	Students sync.Stats `json:"students"`
	Combined sync.Stats `json:"combined"`
}

// NewSummary builds a summary from a run result
func NewSummary(result *sync.RunResult) *Summary {
	return &Summary{
		GeneratedAt:     time.Now().UTC(),
		DurationSeconds: result.Duration.Seconds(),
		StaffPhotos:     result.StaffPhotos,
		StudentPhotos:   result.StudentPhotos,
		DownloadStats: DownloadStats{
			Staff:    result.Staff,
			Students: result.Students,
			Combined: result.Combined,
		},
	}
}

// WriteSummary saves the summary atomically so a crash never leaves a
// half-written file
func WriteSummary(path string, summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return atomicWrite(path, data)
}

// WriteDebugDump saves a raw portal response alongside a pretty-printed
// rendering when the body is valid JSON
func WriteDebugDump(path string, raw []byte) error {
	if err := atomicWrite(path, raw); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		// Not JSON; the raw dump alone is the artifact
		return nil
	}

	ext := filepath.Ext(path)
	prettyPath := path[:len(path)-len(ext)] + ".pretty" + ext
	return atomicWrite(prettyPath, pretty.Bytes())
}

// atomicWrite writes via a temporary file and rename
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize report file: %w", err)
	}

	return nil
}
