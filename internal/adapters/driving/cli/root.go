// Package cli provides the cobra command tree for dirsync.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dirsync/internal/app"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// version is set by SetVersion from the build.
var version = "dev"

// Services used by commands. Populated on first use by wire, or by tests.
var (
	settingsService driving.SettingsService
	runCoordinator  driving.RunCoordinator
	runHistory      driving.RunHistory
	scheduler       driving.Scheduler
	application     *app.App
)

// build assembles the application. Replaced in tests.
var build = app.Build

// Persistent flag values.
var (
	configDir    string
	dryRun       bool
	verbose      bool
	outputFormat string
)

// skipWiring marks commands that need no services.
const skipWiring = "skip-wiring"

var rootCmd = &cobra.Command{
	Use:   "dirsync",
	Short: "Delta-sync an identity directory into a document store",
	Long: `dirsync pulls every user from an identity directory (Microsoft Graph,
Google Workspace or a GitHub organisation), lands the snapshot on disk,
diffs it against the previous state and persists only what changed.`,
	SilenceUsage:      true,
	PersistentPreRunE: wire,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.dirsync)")
	flags.BoolVar(&dryRun, "dry-run", false, "keep snapshots, users and runs in memory")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVarP(&outputFormat, "output", "o", string(FormatText), "output format: text, json or yaml")
}

// SetVersion sets the version reported by the version command and the probe client.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command and releases any wired services.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

// wire builds services unless the command opts out or they are already set.
func wire(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if _, err := ParseFormat(outputFormat); err != nil {
		return err
	}
	if cmd.Annotations[skipWiring] == "true" || runCoordinator != nil {
		return nil
	}

	a, err := build(cmd.Context(), app.Options{ConfigDir: configDir, DryRun: dryRun, Version: version})
	if err != nil {
		return err
	}
	application = a
	settingsService = a.Settings
	runCoordinator = a.Runs
	runHistory = a.History
	scheduler = a.Scheduler
	return nil
}

func closeServices() {
	if application == nil {
		return
	}
	if err := application.Close(); err != nil {
		logger.Error(err, "closing services")
	}
	application = nil
}

var errNotConfigured = errors.New("services not configured")
