package auth

import (
	"fmt"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// NewTokenProvider creates the TokenProvider for the configured auth method.
func NewTokenProvider(settings domain.AuthSettings) (driven.TokenProvider, error) {
	switch settings.Method {
	case domain.AuthMethodClientCredentials:
		provider, err := NewClientCredentialsProvider(settings)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case domain.AuthMethodStatic:
		return NewStaticTokenProvider(settings.Token), nil
	case domain.AuthMethodNone:
		return NewNullTokenProvider(), nil
	default:
		return nil, fmt.Errorf("%w: auth method %q", domain.ErrUnsupportedType, settings.Method)
	}
}
