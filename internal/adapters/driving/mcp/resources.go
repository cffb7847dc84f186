package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for dirsync resources.
	uriScheme = "dirsync://"

	mimeJSON = "application/json"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "Recent directory sync runs",
		MIMEType:    mimeJSON,
	}, s.handleRunsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "runs/{runId}/summary",
		Name:        "run-summary",
		Description: "Summary of a specific run",
		MIMEType:    mimeJSON,
	}, s.handleSummaryResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "snapshots/{snapshotId}/changes",
		Name:        "snapshot-changes",
		Description: "Change events recorded for a landing snapshot",
		MIMEType:    mimeJSON,
	}, s.handleChangesResource)
}

func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	runs, err := s.ports.History.ListRuns(ctx, defaultRunLimit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	infos := make([]RunOutput, len(runs))
	for i := range runs {
		infos[i] = runOutput(&runs[i])
	}
	return jsonResource(req.Params.URI, infos)
}

func (s *Server) handleSummaryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	runID := extractSegment(req.Params.URI, "runs/", "/summary")
	if runID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	summary, err := s.ports.History.Summary(ctx, runID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting summary: %w", err)
	}
	return jsonResource(req.Params.URI, summary)
}

func (s *Server) handleChangesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	snapshotID := extractSegment(req.Params.URI, "snapshots/", "/changes")
	if snapshotID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	events, err := s.ports.History.Changes(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("listing changes: %w", err)
	}
	if events == nil {
		events = []domain.ChangeEvent{}
	}
	return jsonResource(req.Params.URI, events)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(data),
		}},
	}, nil
}

// extractSegment returns the path segment between prefix and suffix in a
// dirsync:// URI, e.g. the run id of dirsync://runs/{runId}/summary.
func extractSegment(uri, prefix, suffix string) string {
	rest, ok := strings.CutPrefix(uri, uriScheme+prefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, suffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
