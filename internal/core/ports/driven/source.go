package driven

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// RawItem is one undecoded item of a source page.
type RawItem = json.RawMessage

// Page is a single page returned by a source.
type Page struct {
	// Items holds the raw items in source order.
	Items []RawItem

	// Next is the opaque continuation token. Empty means this was the last page.
	Next string
}

// PageSource fetches a directory listing one page at a time.
// Each source type (graph, google, github) implements this interface.
type PageSource interface {
	// Name returns the source type identifier.
	Name() string

	// FetchPage fetches the page identified by token. An empty token is the first page.
	// Errors are classified into the domain source taxonomy (*domain.SourceError).
	FetchPage(ctx context.Context, token string) (*Page, error)

	// Transform decodes one raw item into a Record.
	// Returns an error wrapping domain.ErrMissingID when the item has no id.
	Transform(raw RawItem) (domain.Record, error)
}

// SourceBuilder creates a PageSource for one run.
// token is the bearer token acquired for this run; empty for no-auth sources.
type SourceBuilder func(settings domain.Settings, token string) (PageSource, error)

// Listing is a lazy, finite, non-restartable sequence of pages for one run.
type Listing interface {
	// Next fetches the next page, applying the retry policy.
	// Returns iterator.Done (google.golang.org/api/iterator) after the last page.
	Next(ctx context.Context) (*Page, error)

	// Transform decodes one raw item of a page.
	Transform(raw RawItem) (domain.Record, error)

	// Pages returns the number of pages fetched so far.
	Pages() int
}

// SourceFactory opens a fresh listing for each run.
// Tokens are acquired on Open and never cached across runs.
type SourceFactory interface {
	// Open builds the configured source with the settings the run started with.
	// Returns domain.ErrUnsupportedType for an unknown source type and an error
	// wrapping domain.ErrTokenAcquisition when no token could be issued.
	Open(ctx context.Context, settings domain.Settings) (Listing, error)
}
