package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"compassync/pkg/auth"
	"compassync/pkg/config"
	"compassync/pkg/logger"
	"compassync/pkg/portal"
	"compassync/pkg/report"
	"compassync/pkg/sync"
	"compassync/pkg/ui"
)

var (
	// Sync command flags
	baseURL      string
	username     string
	password     string
	accountName  string
	staffDir     string
	studentDir   string
	summaryFile  string
	debugDump    bool
	noDownload   bool
	staffOnly    bool
	studentsOnly bool
	limit        int
	maxRetries   int
	timeout      int
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the local photo cache with the portal",
	Long: `Synchronize the local photo cache with the portal.

This command requires portal credentials configured through one of:
  - Stored credentials (use 'compassync auth login' to store)
  - Environment variables (COMPASS_USERNAME and COMPASS_PASSWORD)
  - Configuration file

Staff photos are synchronized first, then student photos after a pause.
Photos already cached at their current version are skipped.`,
	Example: `  # Full staff and student sync
  compassync sync --base-url https://school.compass.education

  # Staff only, into a custom directory
  compassync sync --staff-only --staff-dir ./photos/staff

  # Dry run: list photo URLs without downloading
  compassync sync --no-download --summary run.json

  # First 10 of each listing, for testing pacing against the portal
  compassync sync --limit 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runSync()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&baseURL, "base-url", "", "portal base URL (e.g. https://school.compass.education)")
	syncCmd.Flags().StringVarP(&username, "username", "u", "", "portal username")
	syncCmd.Flags().StringVar(&password, "password", "", "portal password (prefer stored credentials)")
	syncCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	syncCmd.Flags().StringVar(&staffDir, "staff-dir", "", "staff photo directory (default: compass_photos/staff)")
	syncCmd.Flags().StringVar(&studentDir, "student-dir", "", "student photo directory (default: compass_photos/students)")
	syncCmd.Flags().StringVar(&summaryFile, "summary", "", "write a JSON run summary to this path")
	syncCmd.Flags().BoolVar(&debugDump, "debug-dump", false, "dump the raw student response for troubleshooting")
	syncCmd.Flags().BoolVar(&noDownload, "no-download", false, "collect photo URLs without downloading")
	syncCmd.Flags().BoolVar(&staffOnly, "staff-only", false, "synchronize staff photos only")
	syncCmd.Flags().BoolVar(&studentsOnly, "students-only", false, "synchronize student photos only")
	syncCmd.Flags().IntVar(&limit, "limit", 0, "process at most this many people per listing (0 = all)")
	syncCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "maximum number of retry attempts")
	syncCmd.Flags().IntVar(&timeout, "timeout", 60, "request timeout in seconds")
}

func runSync() {
	cfg := loadSyncConfig()

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Compassync starting")

	notifier := ui.NewNotifier()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, dir := mustLogin(ctx, cfg, log)

	engine := sync.NewEngine(session, cfg, log)
	result, err := engine.Run(ctx, dir, session.BaseURL(), sync.RunOptions{
		Limit:        limit,
		NoDownload:   noDownload,
		SkipStaff:    studentsOnly,
		SkipStudents: staffOnly,
	})
	if err != nil {
		log.WithError(err).Error("synchronization failed")
		ui.PrintError("Synchronization failed", err.Error())
		if cfg.Notifications.Enabled && cfg.Notifications.OnError {
			notifier.SendError("Compassync", "Photo synchronization failed: "+err.Error())
		}
		os.Exit(1)
	}

	if cfg.Output.DebugDump && len(result.StudentRaw) > 0 {
		if err := report.WriteDebugDump("student_response.json", result.StudentRaw); err != nil {
			log.WithError(err).Warn("failed to write debug dump")
		}
	}

	if cfg.Output.SummaryFile != "" {
		if err := report.WriteSummary(cfg.Output.SummaryFile, report.NewSummary(result)); err != nil {
			log.WithError(err).Warn("failed to write run summary")
		} else {
			ui.PrintInfo("Summary written", cfg.Output.SummaryFile)
		}
	}

	printRunResult(result)

	if cfg.Notifications.Enabled && cfg.Notifications.OnComplete {
		notifier.SendSuccess("Compassync", fmt.Sprintf(
			"Sync complete: %d fetched, %d skipped, %d failed",
			result.Combined.Fetched(), result.Combined.Skipped, result.Combined.Failed))
	}

	if result.Combined.Failed > 0 {
		os.Exit(1)
	}
}

// loadSyncConfig layers flags over env, file, and defaults, then fills
// credentials from the credential manager when they are still missing
func loadSyncConfig() *config.Config {
	flags := map[string]interface{}{
		"base-url":    baseURL,
		"username":    username,
		"password":    password,
		"staff-dir":   staffDir,
		"student-dir": studentDir,
		"summary":     summaryFile,
	}
	if debugDump {
		flags["debug-dump"] = true
	}
	if maxRetries != 3 {
		flags["max-retries"] = maxRetries
	}
	if timeout != 60 {
		flags["timeout"] = timeout
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if !notifications {
		flags["notifications-enabled"] = false
	}

	cfg, err := config.Load(configFile, flags)
	if err == nil {
		return cfg
	}

	// Validation may have failed only because credentials are not in the
	// config chain. Try the credential manager before giving up.
	account := retrieveAccount()
	if account == nil {
		ui.PrintError("Failed to load configuration", err.Error())
		fmt.Println("\nTo store credentials securely, run:")
		fmt.Println("  compassync auth login")
		fmt.Println("\nOr set environment variables:")
		fmt.Println("  export COMPASS_USERNAME=your_username")
		fmt.Println("  export COMPASS_PASSWORD=your_password")
		os.Exit(1)
	}

	flags["username"] = account.Username
	flags["password"] = account.Password
	if baseURL == "" && account.BaseURL != "" {
		flags["base-url"] = account.BaseURL
	}

	cfg, err = config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("Using account", account.Username)
	return cfg
}

// retrieveAccount fetches stored credentials, honoring --account
func retrieveAccount() *auth.Account {
	manager, err := auth.NewManager()
	if err != nil {
		return nil
	}

	if accountName != "" {
		account, err := manager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Account not found", accountName)
			ui.PrintInfo("Available accounts", "Use 'compassync auth list' to see stored accounts")
			os.Exit(1)
		}
		return account
	}

	account, err := manager.RetrieveDefault()
	if err != nil {
		return nil
	}
	return account
}

// mustLogin authenticates against the portal or exits
func mustLogin(ctx context.Context, cfg *config.Config, log logger.Logger) (*portal.Session, *portal.Directory) {
	transport, err := portal.NewTransport(cfg.Portal.RequestTimeout, cfg.Retry.MaxAttempts, log)
	if err != nil {
		ui.PrintError("Failed to initialize portal client", err.Error())
		os.Exit(1)
	}

	session, err := portal.NewAuthenticator(transport, cfg, log).Login(ctx)
	if err != nil {
		log.WithError(err).Error("portal login failed")
		ui.PrintError("Login failed", err.Error())
		os.Exit(1)
	}

	return session, portal.NewDirectory(session, cfg, log)
}

func printRunResult(result *sync.RunResult) {
	ui.PrintHighlight("Synchronization complete")
	ui.PrintInfo("Duration", result.Duration.Round(time.Second).String())
	ui.PrintInfo("Processed", fmt.Sprintf("%d", result.Combined.TotalProcessed))
	ui.PrintInfo("Downloaded", fmt.Sprintf("%d new, %d updated", result.Combined.Downloaded, result.Combined.Updated))
	ui.PrintInfo("Skipped", fmt.Sprintf("%d already current", result.Combined.Skipped))
	if result.Combined.Failed > 0 {
		ui.PrintWarning("Failed", result.Combined.Failed)
	}
}
