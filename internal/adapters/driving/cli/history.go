package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var changesCmd = &cobra.Command{
	Use:   "changes [snapshot-id]",
	Short: "Show the change events of a snapshot",
	Long: `Shows the new, modified and deleted users recorded for a landing snapshot.
Defaults to the snapshot of the most recent finished run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChanges,
}

func init() {
	runsCmd.Flags().IntP("limit", "n", 20, "maximum number of runs to show")
	changesCmd.Flags().StringP("type", "t", "", "only show new, modified or deleted events")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(changesCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	if runHistory == nil {
		return errNotConfigured
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("getting limit flag: %w", err)
	}

	runs, err := runHistory.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return printRuns(cmd.OutOrStdout(), runs)
}

func runChanges(cmd *cobra.Command, args []string) error {
	if runHistory == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	changeType, err := cmd.Flags().GetString("type")
	if err != nil {
		return fmt.Errorf("getting type flag: %w", err)
	}
	switch domain.ChangeType(changeType) {
	case "", domain.ChangeNew, domain.ChangeModified, domain.ChangeDeleted:
	default:
		return fmt.Errorf("%w: change type %q", domain.ErrInvalidInput, changeType)
	}

	snapshotID := ""
	if len(args) > 0 {
		snapshotID = args[0]
	} else {
		latest, err := runHistory.LatestSummary(ctx)
		if err != nil {
			return fmt.Errorf("finding latest run: %w", err)
		}
		snapshotID = latest.SnapshotID
	}

	events, err := runHistory.Changes(ctx, snapshotID)
	if err != nil {
		return err
	}
	if changeType != "" {
		filtered := events[:0:0]
		for _, ev := range events {
			if ev.ChangeType == domain.ChangeType(changeType) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	return printChanges(cmd.OutOrStdout(), snapshotID, events)
}
