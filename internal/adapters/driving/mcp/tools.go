package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

const defaultRunLimit = 10

// LatestRunInput is the input for the latest_run tool.
type LatestRunInput struct {
	RunID string `json:"run_id,omitempty" jsonschema:"run to describe; the most recent finished run when empty"`
}

// LatestRunOutput is the output of the latest_run tool.
type LatestRunOutput struct {
	Found   bool               `json:"found"`
	Summary *domain.RunSummary `json:"summary,omitempty"`
}

// ListChangesInput is the input for the list_changes tool.
type ListChangesInput struct {
	SnapshotID string `json:"snapshot_id,omitempty" jsonschema:"snapshot to list; the latest run's snapshot when empty"`
	ChangeType string `json:"change_type,omitempty" jsonschema:"only events of this type: new, modified or deleted"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of events to return"`
}

// ListChangesOutput is the output of the list_changes tool.
type ListChangesOutput struct {
	SnapshotID string               `json:"snapshot_id"`
	Total      int                  `json:"total"`
	Changes    []domain.ChangeEvent `json:"changes"`
}

// ListRunsInput is the input for the list_runs tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return (default 10)"`
}

// RunOutput describes one run.
type RunOutput struct {
	ID                 string `json:"id"`
	SnapshotID         string `json:"snapshot_id"`
	State              string `json:"state"`
	CollectionComplete bool   `json:"collection_complete"`
	Collected          int    `json:"collected"`
	Error              string `json:"error,omitempty"`
	StartedAt          string `json:"started_at"`
}

// ListRunsOutput is the output of the list_runs tool.
type ListRunsOutput struct {
	Runs []RunOutput `json:"runs"`
}

// TriggerRunInput is the input for the trigger_run tool.
type TriggerRunInput struct{}

// TriggerRunOutput is the output of the trigger_run tool.
type TriggerRunOutput struct {
	RunID string `json:"run_id"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "latest_run",
		Description: "Summary of the most recent directory sync run, or of a given run",
	}, s.handleLatestRun)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_changes",
		Description: "New, modified and deleted users recorded for a snapshot",
	}, s.handleListChanges)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_runs",
		Description: "Recent directory sync runs, newest first",
	}, s.handleListRuns)

	if s.ports.Runs != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "trigger_run",
			Description: "Start a directory sync run in the background",
		}, s.handleTriggerRun)
	}
}

func (s *Server) handleLatestRun(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LatestRunInput,
) (*mcp.CallToolResult, LatestRunOutput, error) {
	var summary *domain.RunSummary
	var err error
	if input.RunID != "" {
		summary, err = s.ports.History.Summary(ctx, input.RunID)
	} else {
		summary, err = s.ports.History.LatestSummary(ctx)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, LatestRunOutput{Found: false}, nil
	}
	if err != nil {
		return nil, LatestRunOutput{}, err
	}
	return nil, LatestRunOutput{Found: true, Summary: summary}, nil
}

func (s *Server) handleListChanges(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListChangesInput,
) (*mcp.CallToolResult, ListChangesOutput, error) {
	snapshotID := input.SnapshotID
	if snapshotID == "" {
		latest, err := s.ports.History.LatestSummary(ctx)
		if err != nil {
			return nil, ListChangesOutput{}, fmt.Errorf("resolving latest snapshot: %w", err)
		}
		snapshotID = latest.SnapshotID
	}

	var filter domain.ChangeType
	switch ct := domain.ChangeType(input.ChangeType); ct {
	case "":
	case domain.ChangeNew, domain.ChangeModified, domain.ChangeDeleted:
		filter = ct
	default:
		return nil, ListChangesOutput{}, fmt.Errorf("%w: change type %q", domain.ErrInvalidInput, input.ChangeType)
	}

	events, err := s.ports.History.Changes(ctx, snapshotID)
	if err != nil {
		return nil, ListChangesOutput{}, err
	}

	output := ListChangesOutput{SnapshotID: snapshotID, Changes: []domain.ChangeEvent{}}
	for i := range events {
		if filter != "" && events[i].ChangeType != filter {
			continue
		}
		output.Total++
		if input.Limit > 0 && len(output.Changes) >= input.Limit {
			continue
		}
		output.Changes = append(output.Changes, events[i])
	}
	return nil, output, nil
}

func (s *Server) handleListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}

	runs, err := s.ports.History.ListRuns(ctx, limit)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}

	output := ListRunsOutput{Runs: make([]RunOutput, len(runs))}
	for i := range runs {
		output.Runs[i] = runOutput(&runs[i])
	}
	return nil, output, nil
}

func (s *Server) handleTriggerRun(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ TriggerRunInput,
) (*mcp.CallToolResult, TriggerRunOutput, error) {
	runID, err := s.ports.Runs.Trigger(ctx)
	if err != nil {
		return nil, TriggerRunOutput{}, err
	}
	return nil, TriggerRunOutput{RunID: runID}, nil
}

func runOutput(run *domain.Run) RunOutput {
	return RunOutput{
		ID:                 run.ID,
		SnapshotID:         run.SnapshotID,
		State:              string(run.State),
		CollectionComplete: run.CollectionComplete,
		Collected:          run.Collected,
		Error:              run.Error,
		StartedAt:          run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
