package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the portal photo synchronizer
type Config struct {
	// Portal connection and credentials
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Human-like pacing between requests
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Retry policy per request class
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PortalConfig holds portal-specific configuration
type PortalConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	Username       string        `yaml:"username" json:"username"`
	Password       string        `yaml:"password" json:"password"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
}

// PacingConfig holds the randomized delays that keep the traffic shape
// human-like. Each pause is base + uniform(0, jitter).
type PacingConfig struct {
	RequestDelay        time.Duration `yaml:"request_delay" json:"request_delay"`
	RequestDelayJitter  time.Duration `yaml:"request_delay_jitter" json:"request_delay_jitter"`
	DownloadDelay       time.Duration `yaml:"download_delay" json:"download_delay"`
	DownloadDelayJitter time.Duration `yaml:"download_delay_jitter" json:"download_delay_jitter"`
	// InitialDelay runs once before the login page fetch
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	// PostLoginDelay separates the login page load from the credential POST.
	// Fixed, no jitter: a form submit a couple of seconds after page load is
	// what a human produces.
	PostLoginDelay time.Duration `yaml:"post_login_delay" json:"post_login_delay"`
	// WarmupDelay separates a warm-up page visit from the API call it fronts
	WarmupDelay       time.Duration `yaml:"warmup_delay" json:"warmup_delay"`
	WarmupDelayJitter time.Duration `yaml:"warmup_delay_jitter" json:"warmup_delay_jitter"`
	// PhaseDelay separates the staff phase from the student phase
	PhaseDelay       time.Duration `yaml:"phase_delay" json:"phase_delay"`
	PhaseDelayJitter time.Duration `yaml:"phase_delay_jitter" json:"phase_delay_jitter"`
}

// RetryConfig holds the bounded retry policy. Delay tables escalate per
// attempt; the last entry repeats if attempts outnumber entries.
type RetryConfig struct {
	MaxAttempts   int             `yaml:"max_attempts" json:"max_attempts"`
	APIDelays     []time.Duration `yaml:"api_delays" json:"api_delays"`
	PhotoDelays   []time.Duration `yaml:"photo_delays" json:"photo_delays"`
	StudentDelays []time.Duration `yaml:"student_delays" json:"student_delays"`
}

// OutputConfig holds cache directory configuration
type OutputConfig struct {
	StaffDirectory   string `yaml:"staff_directory" json:"staff_directory"`
	StudentDirectory string `yaml:"student_directory" json:"student_directory"`
	SummaryFile      string `yaml:"summary_file" json:"summary_file"`
	DebugDump        bool   `yaml:"debug_dump" json:"debug_dump"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	OnComplete       bool `yaml:"on_complete" json:"on_complete"`
	OnError          bool `yaml:"on_error" json:"on_error"`
	ProgressInterval int  `yaml:"progress_interval" json:"progress_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults. The portal
// API can be slow, hence the 60s request timeout.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			RequestTimeout: 60 * time.Second,
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
		},
		Pacing: PacingConfig{
			RequestDelay:        2 * time.Second,
			RequestDelayJitter:  1 * time.Second,
			DownloadDelay:       250 * time.Millisecond,
			DownloadDelayJitter: 200 * time.Millisecond,
			InitialDelay:        3 * time.Second,
			PostLoginDelay:      2 * time.Second,
			WarmupDelay:         3 * time.Second,
			WarmupDelayJitter:   1 * time.Second,
			PhaseDelay:          5 * time.Second,
			PhaseDelayJitter:    2 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			APIDelays:     []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second},
			PhotoDelays:   []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
			StudentDelays: []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second},
		},
		Output: OutputConfig{
			StaffDirectory:   "compass_photos/staff",
			StudentDirectory: "compass_photos/students",
			SummaryFile:      "",
			DebugDump:        false,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			ProgressInterval: 25,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if username := os.Getenv("COMPASS_USERNAME"); username != "" {
		c.Portal.Username = username
	}
	if password := os.Getenv("COMPASS_PASSWORD"); password != "" {
		c.Portal.Password = password
	}
	if baseURL := os.Getenv("COMPASS_BASE_URL"); baseURL != "" {
		c.Portal.BaseURL = baseURL
	}

	// Timeout is whole seconds, delays fractional seconds, matching the
	// portal's documented knobs
	if timeout := os.Getenv("COMPASS_REQUEST_TIMEOUT"); timeout != "" {
		if val, err := strconv.Atoi(timeout); err == nil && val > 0 {
			c.Portal.RequestTimeout = time.Duration(val) * time.Second
		}
	}
	if d, ok := envSeconds("COMPASS_REQUEST_DELAY"); ok {
		c.Pacing.RequestDelay = d
	}
	if d, ok := envSeconds("COMPASS_REQUEST_DELAY_JITTER"); ok {
		c.Pacing.RequestDelayJitter = d
	}
	if d, ok := envSeconds("COMPASS_DOWNLOAD_DELAY"); ok {
		c.Pacing.DownloadDelay = d
	}
	if d, ok := envSeconds("COMPASS_DOWNLOAD_DELAY_JITTER"); ok {
		c.Pacing.DownloadDelayJitter = d
	}

	if staffDir := os.Getenv("COMPASS_STAFF_DIR"); staffDir != "" {
		c.Output.StaffDirectory = staffDir
	}
	if studentDir := os.Getenv("COMPASS_STUDENT_DIR"); studentDir != "" {
		c.Output.StudentDirectory = studentDir
	}
	if logLevel := os.Getenv("COMPASS_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if notifEnabled := os.Getenv("COMPASS_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	return nil
}

// envSeconds reads an environment variable holding fractional seconds
func envSeconds(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		return 0, false
	}
	return time.Duration(val * float64(time.Second)), true
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".compassync.yaml",
		".compassync.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "compassync", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "compassync", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".compassync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.BaseURL == "" {
		errs = append(errs, errors.New("portal base URL is required"))
	}
	if c.Portal.Username == "" {
		errs = append(errs, errors.New("portal username is required"))
	}
	if c.Portal.Password == "" {
		errs = append(errs, errors.New("portal password is required"))
	}
	if c.Portal.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max retry attempts must be positive"))
	}
	if c.Pacing.RequestDelay < 0 || c.Pacing.RequestDelayJitter < 0 {
		errs = append(errs, errors.New("request delays cannot be negative"))
	}
	if c.Pacing.DownloadDelay < 0 || c.Pacing.DownloadDelayJitter < 0 {
		errs = append(errs, errors.New("download delays cannot be negative"))
	}

	if c.Output.StaffDirectory == "" {
		errs = append(errs, errors.New("staff directory is required"))
	}
	if c.Output.StudentDirectory == "" {
		errs = append(errs, errors.New("student directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may hold the portal password
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Portal.BaseURL = baseURL
	}
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Portal.Username = username
	}
	if password, ok := flags["password"].(string); ok && password != "" {
		c.Portal.Password = password
	}
	if staffDir, ok := flags["staff-dir"].(string); ok && staffDir != "" {
		c.Output.StaffDirectory = staffDir
	}
	if studentDir, ok := flags["student-dir"].(string); ok && studentDir != "" {
		c.Output.StudentDirectory = studentDir
	}
	if summary, ok := flags["summary"].(string); ok && summary != "" {
		c.Output.SummaryFile = summary
	}
	if debugDump, ok := flags["debug-dump"].(bool); ok {
		c.Output.DebugDump = debugDump
	}
	if maxAttempts, ok := flags["max-retries"].(int); ok && maxAttempts > 0 {
		c.Retry.MaxAttempts = maxAttempts
	}
	if timeout, ok := flags["timeout"].(int); ok && timeout > 0 {
		c.Portal.RequestTimeout = time.Duration(timeout) * time.Second
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if enabled, ok := flags["notifications-enabled"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".compassync.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
