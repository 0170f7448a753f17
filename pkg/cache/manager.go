package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Decision is the change detector's verdict for one person
type Decision int

const (
	// DecisionSkip means the cached photo already encodes the current
	// token's timestamp; no network call is needed
	DecisionSkip Decision = iota
	// DecisionCreate means no cached photo exists for the display code
	DecisionCreate
	// DecisionReplace means a cached photo exists but is stale
	DecisionReplace
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionCreate:
		return "create"
	case DecisionReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// timestampPattern matches the freshness marker the service embeds in photo
// version tokens: an underscore, ten digits, then AM or PM. The value is an
// opaque comparable string, never parsed as a date.
var timestampPattern = regexp.MustCompile(`_(\d{10}[AP]M)`)

// ExtractTimestamp pulls the freshness timestamp out of a photo version
// token. Empty result means no freshness signal is available.
func ExtractTimestamp(photoToken string) string {
	match := timestampPattern.FindStringSubmatch(photoToken)
	if match == nil {
		return ""
	}
	return match[1]
}

// Manager owns one photo cache directory. The filenames are the freshness
// index: {displayCode}_{first8OfToken}_{timestamp|"unknown"}.jpg, one file
// per display code. No separate metadata store exists.
//
// Access is single-writer: nothing locks the directory against concurrent
// runs, so callers must not point two runs at the same cache directory.
type Manager struct {
	dir string
}

// NewManager creates a cache manager, creating the directory if needed
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the cache directory path
func (m *Manager) Dir() string {
	return m.dir
}

// Decide compares the current photo version token against the cached files
// for a display code. The stale path is only meaningful for DecisionReplace.
//
// A token without an embedded timestamp can never prove the cache current,
// so it always decides Create or Replace.
func (m *Manager) Decide(displayCode, photoToken string) (Decision, string, error) {
	matches, err := m.existingFiles(displayCode)
	if err != nil {
		return DecisionCreate, "", err
	}

	if len(matches) == 0 {
		return DecisionCreate, "", nil
	}

	timestamp := ExtractTimestamp(photoToken)
	if timestamp == "" {
		// No freshness signal: must refresh
		return DecisionReplace, matches[0], nil
	}

	for _, path := range matches {
		if strings.Contains(filepath.Base(path), timestamp) {
			return DecisionSkip, path, nil
		}
	}

	return DecisionReplace, matches[0], nil
}

// Filename builds the cache filename for a person's current token
func (m *Manager) Filename(displayCode, photoToken string) string {
	timestamp := ExtractTimestamp(photoToken)
	if timestamp == "" {
		timestamp = "unknown"
	}

	guid := photoToken
	if len(guid) > 8 {
		guid = guid[:8]
	}

	return fmt.Sprintf("%s_%s_%s.jpg", SanitizeCode(displayCode), guid, timestamp)
}

// SavePhoto writes photo data under the person's cache filename, then sweeps
// every other file for the same display code. The sweep enforces the
// one-file-per-code invariant that the naming scheme alone does not.
func (m *Manager) SavePhoto(r io.Reader, displayCode, photoToken string) (string, error) {
	filename := m.Filename(displayCode, photoToken)
	path := filepath.Join(m.dir, filename)

	tempPath := path + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to save photo data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	matches, err := m.existingFiles(displayCode)
	if err != nil {
		return filename, nil
	}
	for _, stale := range matches {
		if stale != path {
			os.Remove(stale)
		}
	}

	return filename, nil
}

// Remove deletes a cached file by path
func (m *Manager) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cached photo: %w", err)
	}
	return nil
}

// RemoveAll deletes every cached file for a display code and returns their
// names
func (m *Manager) RemoveAll(displayCode string) ([]string, error) {
	matches, err := m.existingFiles(displayCode)
	if err != nil {
		return nil, err
	}

	removed := make([]string, 0, len(matches))
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove cached photo: %w", err)
		}
		removed = append(removed, filepath.Base(path))
	}
	return removed, nil
}

// existingFiles lists the cached files for a display code
func (m *Manager) existingFiles(displayCode string) ([]string, error) {
	pattern := filepath.Join(m.dir, SanitizeCode(displayCode)+"_*.jpg")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached photos: %w", err)
	}
	return matches, nil
}

// SanitizeCode strips a display code down to filename-safe characters
func SanitizeCode(displayCode string) string {
	var b strings.Builder
	for _, c := range displayCode {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '-', c == '_':
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}
