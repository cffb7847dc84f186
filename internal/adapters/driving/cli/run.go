package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// pollInterval is how often trigger checks on its run.
var pollInterval = 500 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a directory sync now",
	Long: `Collects every user from the configured source, reconciles the snapshot
against the stored baseline and persists the changes. Blocks until the run
finishes and prints its summary.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Start a run in the background and follow it",
	Long: `Starts a run, prints its ID immediately, then polls its status until it
reaches a terminal state.`,
	Args: cobra.NoArgs,
	RunE: runTrigger,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a partially failed run from its landing snapshot",
	Long: `Re-runs reconcile and persist for a run whose collection completed,
reusing its landing snapshot without querying the source again.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show the status of a run",
	Long:  `Shows the state and counters of a run. Defaults to the most recent run.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if runCoordinator == nil {
		return errNotConfigured
	}
	summary, err := runCoordinator.Run(cmd.Context())
	return finishRun(cmd, summary, err)
}

func runResume(cmd *cobra.Command, args []string) error {
	if runCoordinator == nil {
		return errNotConfigured
	}
	summary, err := runCoordinator.Resume(cmd.Context(), args[0])
	return finishRun(cmd, summary, err)
}

// finishRun prints whatever summary exists and returns an error for failed runs.
func finishRun(cmd *cobra.Command, summary *domain.RunSummary, err error) error {
	if summary != nil {
		if printErr := printSummary(cmd.OutOrStdout(), summary); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		if summary != nil && summary.State == domain.RunPartiallyFailed {
			return fmt.Errorf("run %s partially failed; resume with 'dirsync resume %s': %w",
				summary.RunID, summary.RunID, err)
		}
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func runTrigger(cmd *cobra.Command, _ []string) error {
	if runCoordinator == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	runID, err := runCoordinator.Trigger(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			return fmt.Errorf("another run is already executing: %w", err)
		}
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Triggered run %s\n", runID)

	status, err := waitForRun(ctx, cmd, runCoordinator, runID)
	if err != nil {
		return err
	}
	if status.Summary != nil {
		return finishRun(cmd, status.Summary, runError(status.Run))
	}
	return printStatus(cmd.OutOrStdout(), status)
}

// waitForRun polls until the run reaches a terminal state.
func waitForRun(
	ctx context.Context,
	cmd *cobra.Command,
	coordinator driving.RunCoordinator,
	runID string,
) (*driving.RunStatus, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastState := domain.RunState("")
	for {
		status, err := coordinator.Status(ctx, runID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("polling run %s: %w", runID, err)
		}
		if status != nil {
			if status.Run.State != lastState {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s (%d collected)\n", status.Run.State, status.Run.Collected)
				lastState = status.Run.State
			}
			if status.Run.State.Terminal() && !status.Running {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func runError(run domain.Run) error {
	if run.State == domain.RunCompleted {
		return nil
	}
	if run.Error != "" {
		return errors.New(run.Error)
	}
	return fmt.Errorf("run ended in state %s", run.State)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if runCoordinator == nil || runHistory == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	runID := ""
	if len(args) > 0 {
		runID = args[0]
	} else {
		runs, err := runHistory.ListRuns(ctx, 1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs yet.")
			return nil
		}
		runID = runs[0].ID
	}

	status, err := runCoordinator.Status(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	return printStatus(cmd.OutOrStdout(), status)
}
