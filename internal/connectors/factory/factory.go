// Package factory builds the configured directory source for each run.
package factory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/dirsync/internal/connectors/github"
	"github.com/custodia-labs/dirsync/internal/connectors/google"
	"github.com/custodia-labs/dirsync/internal/connectors/graph"
	"github.com/custodia-labs/dirsync/internal/connectors/pager"
	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Factory implements the interface.
var _ driven.SourceFactory = (*Factory)(nil)

// Factory maps source types to their builders and wraps each built source in a pager.
type Factory struct {
	mu       sync.RWMutex
	builders map[domain.SourceType]driven.SourceBuilder
	tokens   driven.TokenProvider
}

// New creates a factory with the built-in sources registered.
// tokens may be nil, in which case sources are built without a token.
func New(tokens driven.TokenProvider) *Factory {
	f := &Factory{
		builders: make(map[domain.SourceType]driven.SourceBuilder),
		tokens:   tokens,
	}
	f.Register(domain.SourceGraph, graph.Build)
	f.Register(domain.SourceGoogle, google.Build)
	f.Register(domain.SourceGitHub, github.Build)
	return f
}

// Register adds or replaces the builder for a source type.
func (f *Factory) Register(sourceType domain.SourceType, builder driven.SourceBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[sourceType] = builder
}

// SupportedTypes returns the registered source types, sorted.
func (f *Factory) SupportedTypes() []domain.SourceType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]domain.SourceType, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Open acquires a token for this run and returns a fresh listing.
func (f *Factory) Open(ctx context.Context, settings domain.Settings) (driven.Listing, error) {
	f.mu.RLock()
	builder, ok := f.builders[settings.Source.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, settings.Source.Type)
	}

	token := ""
	if f.tokens != nil {
		t, err := f.tokens.GetToken(ctx, settings.Source.Resource)
		if err != nil {
			return nil, err
		}
		token = t
		logger.Debug("acquired %s token for %s", f.tokens.AuthMethod(), settings.Source.Type)
	}

	source, err := builder(settings, token)
	if err != nil {
		return nil, fmt.Errorf("build %s source: %w", settings.Source.Type, err)
	}

	return pager.New(source, pager.ConfigFromSettings(settings.Pager)), nil
}
