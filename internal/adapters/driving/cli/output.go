package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"golang.org/x/term"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// Format selects how command results are printed.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: output format %q", domain.ErrInvalidInput, s)
	}
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// styled reports whether w is a terminal that should get colour.
func styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func render(w io.Writer, style lipgloss.Style, s string) string {
	if !styled(w) {
		return s
	}
	return style.Render(s)
}

// printStructured writes v as JSON or YAML. It returns false for text output.
func printStructured(w io.Writer, v any) (bool, error) {
	format, err := ParseFormat(outputFormat)
	if err != nil {
		return true, err
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case FormatYAML:
		data, err := yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.UseJSONMarshaler())
		if err != nil {
			return true, err
		}
		_, err = w.Write(data)
		return true, err
	default:
		return false, nil
	}
}

func stateStyle(state domain.RunState) lipgloss.Style {
	switch state {
	case domain.RunCompleted:
		return okStyle
	case domain.RunPartiallyFailed:
		return warnStyle
	case domain.RunFailed:
		return failStyle
	default:
		return headingStyle
	}
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", render(w, labelStyle, fmt.Sprintf("%-22s", label+":")), value)
}

func printSummary(w io.Writer, s *domain.RunSummary) error {
	if done, err := printStructured(w, s); done {
		return err
	}

	fmt.Fprintf(w, "%s %s\n", render(w, headingStyle, "Run "+s.RunID), render(w, stateStyle(s.State), string(s.State)))
	field(w, "Snapshot", s.SnapshotID)
	if s.BaselineGeneration != "" {
		field(w, "Baseline", s.BaselineGeneration)
	}
	field(w, "Total users", s.TotalUsers)
	field(w, "New", s.NewUsers)
	field(w, "Modified", s.ModifiedUsers)
	field(w, "Deleted", s.DeletedUsers)
	field(w, "Unchanged", s.UnchangedUsers)
	if s.SkippedItems > 0 {
		field(w, "Skipped items", s.SkippedItems)
	}
	field(w, "Documents written", fmt.Sprintf("%d (%d failed)", s.WriteCount, s.WriteFailures))
	field(w, "Tombstones", s.TombstoneCount)
	field(w, "Change events", fmt.Sprintf("%d (%d failed)", s.ChangeLogCount, s.ChangeLogFailures))
	field(w, "Delta mode", s.DeltaMode)
	if !s.CollectionComplete {
		field(w, "Collection", render(w, warnStyle, "incomplete, totals undercount"))
	}
	if s.ProbeStatus != "" {
		field(w, "Probe", s.ProbeStatus)
	}
	field(w, "Duration", s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond))
	if s.Error != "" {
		field(w, "Error", render(w, failStyle, s.Error))
	}
	return nil
}

func printStatus(w io.Writer, st *driving.RunStatus) error {
	if done, err := printStructured(w, st); done {
		return err
	}

	r := st.Run
	fmt.Fprintf(w, "%s %s\n", render(w, headingStyle, "Run "+r.ID), render(w, stateStyle(r.State), string(r.State)))
	field(w, "Snapshot", r.SnapshotID)
	field(w, "Running here", st.Running)
	field(w, "Collected", r.Collected)
	if r.Skipped > 0 {
		field(w, "Skipped", r.Skipped)
	}
	field(w, "Collection complete", r.CollectionComplete)
	field(w, "Attempt", r.Attempt)
	field(w, "Started", r.StartedAt.Format("2006-01-02 15:04:05 MST"))
	field(w, "Updated", r.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	if r.Error != "" {
		field(w, "Error", render(w, failStyle, r.Error))
	}
	if st.Summary != nil {
		fmt.Fprintln(w)
		return printSummary(w, st.Summary)
	}
	return nil
}

func printRuns(w io.Writer, runs []domain.Run) error {
	if done, err := printStructured(w, runs); done {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs yet.")
		return nil
	}
	fmt.Fprintln(w, render(w, headingStyle, fmt.Sprintf("%-36s  %-16s  %9s  %-20s  %s", "RUN", "STATE", "COLLECTED", "STARTED", "ERROR")))
	for _, r := range runs {
		state := fmt.Sprintf("%-16s", r.State)
		fmt.Fprintf(w, "%-36s  %s  %9d  %-20s  %s\n",
			r.ID, render(w, stateStyle(r.State), state), r.Collected,
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Error)
	}
	return nil
}

func printChanges(w io.Writer, snapshotID string, events []domain.ChangeEvent) error {
	if done, err := printStructured(w, events); done {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintf(w, "No changes recorded for snapshot %s.\n", snapshotID)
		return nil
	}
	for i := range events {
		ev := &events[i]
		marker := map[domain.ChangeType]string{
			domain.ChangeNew:      render(w, okStyle, "+"),
			domain.ChangeModified: render(w, warnStyle, "~"),
			domain.ChangeDeleted:  render(w, failStyle, "-"),
		}[ev.ChangeType]
		name := ev.ID
		if ev.Record.UserPrincipalName != nil {
			name = fmt.Sprintf("%s (%s)", ev.ID, *ev.Record.UserPrincipalName)
		}
		fmt.Fprintf(w, "%s %s\n", marker, name)
		for _, fieldName := range domain.TrackedFields {
			if d, ok := ev.Changes[fieldName]; ok {
				fmt.Fprintf(w, "    %s: %v -> %v\n", fieldName, display(d.Old), display(d.New))
			}
		}
	}
	return nil
}

func display(v any) any {
	if v == nil {
		return "(absent)"
	}
	return v
}
