package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"compassync/pkg/cache"
	"compassync/pkg/logger"
	"compassync/pkg/portal"
	"compassync/pkg/sync"
	"compassync/pkg/ui"
)

var (
	// Photo command flags
	photoDownload bool
	photoStudents bool
)

// photoCmd represents the photo command
var photoCmd = &cobra.Command{
	Use:   "photo <display-code>",
	Short: "Look up a single person's photo",
	Long: `Look up one person's current photo by display code.

The staff listing is searched first, then the student listing. By default
the photo URL is printed; --download also saves it into the matching
cache directory.`,
	Example: `  # Print the photo URL for a staff member
  compassync photo JDOE

  # Download a student's photo into the student cache
  compassync photo STU0042 --students --download`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runPhoto(strings.TrimSpace(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(photoCmd)

	photoCmd.Flags().BoolVar(&photoDownload, "download", false, "download the photo into the cache directory")
	photoCmd.Flags().BoolVar(&photoStudents, "students", false, "search the student listing first")
	photoCmd.Flags().StringVar(&baseURL, "base-url", "", "portal base URL")
	photoCmd.Flags().StringVarP(&username, "username", "u", "", "portal username")
	photoCmd.Flags().StringVar(&password, "password", "", "portal password (prefer stored credentials)")
	photoCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	photoCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "maximum number of retry attempts")
	photoCmd.Flags().IntVar(&timeout, "timeout", 60, "request timeout in seconds")
}

func runPhoto(displayCode string) {
	cfg := loadSyncConfig()

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, dir := mustLogin(ctx, cfg, log)

	person, isStudent, err := findPerson(ctx, dir, displayCode)
	if err != nil {
		log.WithError(err).Error("directory lookup failed")
		ui.PrintError("Lookup failed", err.Error())
		os.Exit(1)
	}
	if person == nil {
		ui.PrintError("No photo found for display code", displayCode)
		os.Exit(1)
	}

	ui.PrintInfo("Name", person.Name)
	ui.PrintInfo("Display code", person.DisplayCode)
	ui.PrintInfo("Photo URL", portal.PhotoURL(session.BaseURL(), person.PhotoToken))

	if !photoDownload {
		return
	}

	cacheDir := cfg.Output.StaffDirectory
	if isStudent {
		cacheDir = cfg.Output.StudentDirectory
	}

	// A targeted lookup always fetches fresh: clear the cached files so the
	// engine cannot decide to skip
	mgr, err := cache.NewManager(cacheDir)
	if err != nil {
		ui.PrintError("Failed to open cache directory", err.Error())
		os.Exit(1)
	}
	if removed, err := mgr.RemoveAll(person.DisplayCode); err != nil {
		ui.PrintError("Failed to clear cached photos", err.Error())
		os.Exit(1)
	} else if len(removed) > 0 {
		log.DebugWithFields("cleared cached photos", map[string]interface{}{
			"display_code": person.DisplayCode,
			"removed":      removed,
		})
	}

	engine := sync.NewEngine(session, cfg, log)
	if _, err := engine.SyncOne(ctx, *person, cacheDir, cfg.Retry.PhotoDelays); err != nil {
		ui.PrintError("Download failed", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Photo saved to " + cacheDir)
}

// findPerson searches both listings for a display code, staff first unless
// --students flips the order
func findPerson(ctx context.Context, dir *portal.Directory, displayCode string) (*portal.PersonRecord, bool, error) {
	type listing struct {
		fetch    func(context.Context) ([]portal.PersonRecord, error)
		students bool
	}

	order := []listing{
		{dir.FetchStaff, false},
		{dir.FetchStudents, true},
	}
	if photoStudents {
		order[0], order[1] = order[1], order[0]
	}

	for i, l := range order {
		people, err := l.fetch(ctx)
		if err != nil {
			return nil, false, err
		}
		for _, p := range people {
			if strings.EqualFold(p.DisplayCode, displayCode) {
				return &p, l.students, nil
			}
		}
		if i == 0 {
			if err := dir.InterPhasePause(ctx); err != nil {
				return nil, false, err
			}
		}
	}

	return nil, false, nil
}
