package driven

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// TokenProvider provides access tokens for authenticated API calls.
//
// A run asks for a token once, at the start of collection. Implementations
// must not cache tokens across runs.
type TokenProvider interface {
	// GetToken returns a valid access token for the resource.
	// Returns empty string for no-auth providers.
	// Failures wrap domain.ErrTokenAcquisition.
	GetToken(ctx context.Context, resource string) (string, error)

	// AuthMethod returns the authentication method (client_credentials, static, none).
	AuthMethod() domain.AuthMethod
}
