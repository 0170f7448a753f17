package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 60*time.Second, cfg.Portal.RequestTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}, cfg.Retry.APIDelays)
	assert.Equal(t, []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}, cfg.Retry.PhotoDelays)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}, cfg.Retry.StudentDelays)
	assert.Equal(t, "compass_photos/staff", cfg.Output.StaffDirectory)
	assert.Equal(t, "compass_photos/students", cfg.Output.StudentDirectory)
	assert.Equal(t, 25, cfg.Notifications.ProgressInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("COMPASS_USERNAME", "jdoe")
	t.Setenv("COMPASS_PASSWORD", "hunter2")
	t.Setenv("COMPASS_BASE_URL", "https://school.compass.education")
	t.Setenv("COMPASS_REQUEST_TIMEOUT", "90")
	t.Setenv("COMPASS_REQUEST_DELAY", "1.5")
	t.Setenv("COMPASS_DOWNLOAD_DELAY", "0.25")
	t.Setenv("COMPASS_STAFF_DIR", "/tmp/staff")
	t.Setenv("COMPASS_LOG_LEVEL", "debug")
	t.Setenv("COMPASS_NOTIFICATIONS_ENABLED", "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "jdoe", cfg.Portal.Username)
	assert.Equal(t, "hunter2", cfg.Portal.Password)
	assert.Equal(t, "https://school.compass.education", cfg.Portal.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Portal.RequestTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Pacing.RequestDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Pacing.DownloadDelay)
	assert.Equal(t, "/tmp/staff", cfg.Output.StaffDirectory)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("COMPASS_REQUEST_TIMEOUT", "not-a-number")
	t.Setenv("COMPASS_REQUEST_DELAY", "-2")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 60*time.Second, cfg.Portal.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.Pacing.RequestDelay)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Portal.BaseURL = "https://school.compass.education"
	cfg.Portal.Username = "jdoe"
	cfg.Portal.Password = "hunter2"

	assert.NoError(t, cfg.Validate())
}

func TestValidateMissingFields(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL is required")
	assert.Contains(t, err.Error(), "username is required")
	assert.Contains(t, err.Error(), "password is required")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Portal.BaseURL = "https://x"
	cfg.Portal.Username = "u"
	cfg.Portal.Password = "p"
	cfg.Retry.MaxAttempts = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts must be positive")
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"base-url":    "https://flags.compass.education",
		"username":    "flaguser",
		"staff-dir":   "/flags/staff",
		"max-retries": 5,
		"timeout":     120,
		"debug-dump":  true,
		"log-level":   "debug",
	})

	assert.Equal(t, "https://flags.compass.education", cfg.Portal.BaseURL)
	assert.Equal(t, "flaguser", cfg.Portal.Username)
	assert.Equal(t, "/flags/staff", cfg.Output.StaffDirectory)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 120*time.Second, cfg.Portal.RequestTimeout)
	assert.True(t, cfg.Output.DebugDump)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestMergeCommandLineFlagsIgnoresEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Portal.BaseURL = "https://kept.compass.education"

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"base-url":    "",
		"max-retries": 0,
	})

	assert.Equal(t, "https://kept.compass.education", cfg.Portal.BaseURL)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Portal.BaseURL = "https://school.compass.education"
	cfg.Portal.Username = "jdoe"
	cfg.Pacing.PhaseDelay = 7 * time.Second
	require.NoError(t, cfg.Save(path))

	// Config files may hold the portal password
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "https://school.compass.education", loaded.Portal.BaseURL)
	assert.Equal(t, "jdoe", loaded.Portal.Username)
	assert.Equal(t, 7*time.Second, loaded.Pacing.PhaseDelay)
}

func TestLoadFromFileMissingExplicitPath(t *testing.T) {
	cfg := DefaultConfig()
	// An explicitly named file must exist
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
}
