// Package probe checks that a downstream MCP endpoint is reachable after a run.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 10 * time.Second

// Ensure MCPProber implements the interface.
var _ driven.Prober = (*MCPProber)(nil)

// MCPProber connects with the streamable HTTP transport and lists tools.
type MCPProber struct {
	client     *mcp.Client
	httpClient *http.Client
	timeout    time.Duration
}

// NewMCPProber creates a prober. A nil httpClient uses a client with DefaultTimeout.
func NewMCPProber(version string, httpClient *http.Client) *MCPProber {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &MCPProber{
		client:     mcp.NewClient(&mcp.Implementation{Name: "dirsync-probe", Version: version}, nil),
		httpClient: httpClient,
		timeout:    DefaultTimeout,
	}
}

// Probe opens a session against endpoint and lists its tools.
func (p *MCPProber) Probe(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	transport := &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: p.httpClient,
		MaxRetries: -1,
	}
	session, err := p.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		return fmt.Errorf("list tools at %s: %w", endpoint, err)
	}
	logger.Debug("probe %s: %d tools", endpoint, len(tools.Tools))
	return nil
}
