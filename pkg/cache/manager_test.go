package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{
			name:  "token with query suffix",
			token: "ab12cd34_2502250258AM?x=y",
			want:  "2502250258AM",
		},
		{
			name:  "pm marker",
			token: "deadbeef_2501311159PM",
			want:  "2501311159PM",
		},
		{
			name:  "no timestamp",
			token: "ab12cd34ef56",
			want:  "",
		},
		{
			name:  "too few digits",
			token: "ab12_12345AM",
			want:  "",
		},
		{
			name:  "timestamp mid-token",
			token: "prefix_2502250258AM_suffix",
			want:  "2502250258AM",
		},
		{
			name:  "empty token",
			token: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTimestamp(tt.token); got != tt.want {
				t.Errorf("ExtractTimestamp(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	m := &Manager{dir: t.TempDir()}

	got := m.Filename("JSMITH", "ab12cd34_2502250258AM?x=y")
	want := "JSMITH_ab12cd34_2502250258AM.jpg"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}

	// Token without a timestamp gets the literal "unknown" slot
	got = m.Filename("JSMITH", "ab12cd34ef")
	want = "JSMITH_ab12cd34_unknown.jpg"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}

	// Short token is used whole
	got = m.Filename("X", "abc")
	want = "X_abc_unknown.jpg"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

func TestSanitizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JSMITH", "JSMITH"},
		{"J/SMITH", "JSMITH"},
		{"07A-01", "07A-01"},
		{"a b_c", "a b_c"},
		{"../../etc", "etc"},
		{"  padded  ", "padded"},
	}

	for _, tt := range tests {
		if got := SanitizeCode(tt.in); got != tt.want {
			t.Errorf("SanitizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecideCreateWhenEmpty(t *testing.T) {
	m := newTestManager(t)

	decision, stale, err := m.Decide("JDOE", "tok12345_2502250258AM")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if decision != DecisionCreate {
		t.Errorf("decision = %v, want create", decision)
	}
	if stale != "" {
		t.Errorf("stale = %q, want empty", stale)
	}
}

func TestDecideSkipWhenCurrent(t *testing.T) {
	m := newTestManager(t)
	seedFile(t, m.Dir(), "JDOE_tok12345_2502250258AM.jpg")

	decision, _, err := m.Decide("JDOE", "tok12345_2502250258AM")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if decision != DecisionSkip {
		t.Errorf("decision = %v, want skip", decision)
	}
}

func TestDecideReplaceWhenStale(t *testing.T) {
	m := newTestManager(t)
	seedFile(t, m.Dir(), "JDOE_tok12345_2501010101AM.jpg")

	decision, stale, err := m.Decide("JDOE", "tok67890_2502250258AM")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if decision != DecisionReplace {
		t.Errorf("decision = %v, want replace", decision)
	}
	if filepath.Base(stale) != "JDOE_tok12345_2501010101AM.jpg" {
		t.Errorf("stale = %q, want the cached file", stale)
	}
}

func TestDecideNoTimestampNeverSkips(t *testing.T) {
	m := newTestManager(t)

	// Even a cached file carrying the "unknown" slot cannot prove freshness
	seedFile(t, m.Dir(), "JDOE_tok12345_unknown.jpg")

	decision, _, err := m.Decide("JDOE", "tok12345noTimestamp")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if decision != DecisionReplace {
		t.Errorf("decision = %v, want replace for timestampless token", decision)
	}

	empty := newTestManager(t)
	decision, _, err = empty.Decide("JDOE", "tok12345noTimestamp")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if decision != DecisionCreate {
		t.Errorf("decision = %v, want create for empty cache", decision)
	}
}

func TestSavePhotoSweepsStaleFiles(t *testing.T) {
	m := newTestManager(t)
	seedFile(t, m.Dir(), "JDOE_oldtoken_2501010101AM.jpg")
	seedFile(t, m.Dir(), "JDOE_older_2412120101AM.jpg")
	seedFile(t, m.Dir(), "OTHER_tok_2501010101AM.jpg")

	filename, err := m.SavePhoto(strings.NewReader("jpegdata"), "JDOE", "newtok12_2502250258AM")
	if err != nil {
		t.Fatalf("SavePhoto returned error: %v", err)
	}
	if filename != "JDOE_newtok12_2502250258AM.jpg" {
		t.Errorf("filename = %q", filename)
	}

	matches, _ := filepath.Glob(filepath.Join(m.Dir(), "JDOE_*.jpg"))
	if len(matches) != 1 {
		t.Fatalf("expected exactly one JDOE file, got %d: %v", len(matches), matches)
	}
	if filepath.Base(matches[0]) != filename {
		t.Errorf("surviving file = %q, want %q", matches[0], filename)
	}

	// Files for other codes are untouched
	others, _ := filepath.Glob(filepath.Join(m.Dir(), "OTHER_*.jpg"))
	if len(others) != 1 {
		t.Errorf("expected OTHER file to survive, got %v", others)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	if string(data) != "jpegdata" {
		t.Errorf("saved content = %q", data)
	}
}

func TestSavePhotoLeavesNoTempFile(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.SavePhoto(strings.NewReader("x"), "JDOE", "tok12345_2502250258AM"); err != nil {
		t.Fatalf("SavePhoto returned error: %v", err)
	}

	temps, _ := filepath.Glob(filepath.Join(m.Dir(), "*.tmp"))
	if len(temps) != 0 {
		t.Errorf("temp files left behind: %v", temps)
	}
}

func TestRemoveAll(t *testing.T) {
	m := newTestManager(t)
	seedFile(t, m.Dir(), "JDOE_a_2501010101AM.jpg")
	seedFile(t, m.Dir(), "JDOE_b_2502020202AM.jpg")

	removed, err := m.RemoveAll("JDOE")
	if err != nil {
		t.Fatalf("RemoveAll returned error: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed %d files, want 2", len(removed))
	}

	matches, _ := filepath.Glob(filepath.Join(m.Dir(), "JDOE_*.jpg"))
	if len(matches) != 0 {
		t.Errorf("files remain after RemoveAll: %v", matches)
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func seedFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0644); err != nil {
		t.Fatalf("failed to seed %s: %v", name, err)
	}
}
