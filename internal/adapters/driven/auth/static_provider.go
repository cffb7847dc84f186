package auth

import (
	"context"
	"fmt"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure StaticTokenProvider implements the TokenProvider interface.
var _ driven.TokenProvider = (*StaticTokenProvider)(nil)

// StaticTokenProvider returns a pre-issued token from configuration.
// Suitable for GitHub PATs and short-lived tokens injected by a scheduler.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider for a fixed token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// GetToken returns the configured token regardless of resource.
func (p *StaticTokenProvider) GetToken(_ context.Context, _ string) (string, error) {
	if p.token == "" {
		return "", fmt.Errorf("%w: %w: auth.token is empty", domain.ErrTokenAcquisition, domain.ErrAuthRequired)
	}
	return p.token, nil
}

// AuthMethod returns AuthMethodStatic.
func (p *StaticTokenProvider) AuthMethod() domain.AuthMethod {
	return domain.AuthMethodStatic
}
