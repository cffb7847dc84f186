package domain

import (
	"fmt"
	"time"
)

// SourceType identifies the directory a run pulls from.
type SourceType string

// Available source types.
const (
	// SourceGraph is the Microsoft Graph /users endpoint.
	SourceGraph SourceType = "graph"

	// SourceGoogle is the Google Workspace Admin SDK directory.
	SourceGoogle SourceType = "google"

	// SourceGitHub is the member list of a GitHub organisation.
	SourceGitHub SourceType = "github"
)

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceGraph, SourceGoogle, SourceGitHub:
		return true
	default:
		return false
	}
}

// StoreDriver identifies the document store backend.
type StoreDriver string

// Available store drivers.
const (
	StoreSQLite   StoreDriver = "sqlite"
	StorePostgres StoreDriver = "postgres"
	StoreMemory   StoreDriver = "memory"
)

// IsValid returns true if the store driver is recognised.
func (d StoreDriver) IsValid() bool {
	switch d {
	case StoreSQLite, StorePostgres, StoreMemory:
		return true
	default:
		return false
	}
}

// SourceSettings configures the directory source.
type SourceSettings struct {
	Type SourceType

	// Endpoint is the first-page URL (graph) or API base URL override.
	Endpoint string

	// Resource is the identifier passed to the token provider.
	Resource string

	// Org is the GitHub organisation.
	Org string

	// Customer is the Google Workspace customer id.
	Customer string
}

// PagerSettings configures paginated retrieval.
type PagerSettings struct {
	PageSize          int
	MaxAttempts       int
	BackoffBase       time.Duration
	RateLimitDefault  time.Duration
	RequestsPerSecond float64
	Workers           int
}

// LandingSettings configures the landing writer.
type LandingSettings struct {
	Dir           string
	FlushBytes    int
	FlushRecords  int
	FlushAttempts int
}

// StoreSettings configures persistence.
type StoreSettings struct {
	Driver StoreDriver
	Dir    string
	DSN    string
}

// AuthSettings configures the credential provider.
type AuthSettings struct {
	Method       AuthMethod
	TenantID     string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Token        string
}

// Settings is the full recognised configuration surface.
type Settings struct {
	Source  SourceSettings
	Pager   PagerSettings
	Landing LandingSettings
	Store   StoreSettings
	Auth    AuthSettings

	// DeltaMode persists only changes; false forces a full rewrite.
	DeltaMode bool

	// PersistChunkSize groups document writes for progress reporting.
	PersistChunkSize int

	// RunTimeout bounds one run end to end.
	RunTimeout time.Duration

	// ProbeEndpoint is the downstream MCP endpoint probed after a run. Empty disables it.
	ProbeEndpoint string

	Scheduler SchedulerConfig
}

// DefaultSettings returns sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Source: SourceSettings{
			Type:     SourceGraph,
			Endpoint: "https://graph.microsoft.com/v1.0/users",
			Resource: "https://graph.microsoft.com",
			Customer: "my_customer",
		},
		Pager: PagerSettings{
			PageSize:          999,
			MaxAttempts:       5,
			BackoffBase:       time.Second,
			RateLimitDefault:  60 * time.Second,
			RequestsPerSecond: 10,
			Workers:           8,
		},
		Landing: LandingSettings{
			FlushBytes:    4 << 20,
			FlushRecords:  5000,
			FlushAttempts: 3,
		},
		Store: StoreSettings{
			Driver: StoreSQLite,
		},
		Auth: AuthSettings{
			Method: AuthMethodClientCredentials,
		},
		DeltaMode:        true,
		PersistChunkSize: 100,
		RunTimeout:       30 * time.Minute,
		Scheduler:        DefaultSchedulerConfig(),
	}
}

// Validate checks the settings for values the pipeline cannot run with.
func (s *Settings) Validate() error {
	if !s.Source.Type.IsValid() {
		return fmt.Errorf("%w: source type %q", ErrUnsupportedType, s.Source.Type)
	}
	if !s.Store.Driver.IsValid() {
		return fmt.Errorf("%w: store driver %q", ErrUnsupportedType, s.Store.Driver)
	}
	if !s.Auth.Method.IsValid() {
		return fmt.Errorf("%w: auth method %q", ErrUnsupportedType, s.Auth.Method)
	}
	if s.Pager.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidInput)
	}
	if s.Pager.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry attempts must be positive", ErrInvalidInput)
	}
	if s.Pager.BackoffBase <= 0 {
		return fmt.Errorf("%w: backoff base must be positive", ErrInvalidInput)
	}
	if s.Pager.RateLimitDefault <= 0 {
		return fmt.Errorf("%w: rate limit default must be positive", ErrInvalidInput)
	}
	if s.Pager.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidInput)
	}
	if s.Landing.FlushBytes <= 0 || s.Landing.FlushRecords <= 0 {
		return fmt.Errorf("%w: flush thresholds must be positive", ErrInvalidInput)
	}
	if s.Landing.FlushAttempts <= 0 {
		return fmt.Errorf("%w: flush attempts must be positive", ErrInvalidInput)
	}
	if s.RunTimeout <= 0 {
		return fmt.Errorf("%w: run timeout must be positive", ErrInvalidInput)
	}
	switch s.Source.Type {
	case SourceGitHub:
		if s.Source.Org == "" {
			return fmt.Errorf("%w: github source requires an organisation", ErrInvalidInput)
		}
	case SourceGraph:
		if s.Source.Endpoint == "" {
			return fmt.Errorf("%w: graph source requires an endpoint", ErrInvalidInput)
		}
	}
	if s.Store.Driver == StorePostgres && s.Store.DSN == "" {
		return fmt.Errorf("%w: postgres store requires a dsn", ErrInvalidInput)
	}
	return nil
}
