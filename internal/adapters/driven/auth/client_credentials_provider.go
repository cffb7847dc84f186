package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure ClientCredentialsProvider implements the TokenProvider interface.
var _ driven.TokenProvider = (*ClientCredentialsProvider)(nil)

// microsoftTokenURL is the Entra ID v2 token endpoint template.
const microsoftTokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

// tokenRequestTimeout bounds one token exchange.
const tokenRequestTimeout = 30 * time.Second

// ClientCredentialsProvider exchanges an app id and secret for an access token.
//
// Every call performs a new exchange. Tokens are never cached, so a token's
// lifetime is bounded by the run that asked for it.
type ClientCredentialsProvider struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

// NewClientCredentialsProvider creates a provider from auth settings.
// When no token URL is configured the Entra ID endpoint for the tenant is used.
func NewClientCredentialsProvider(settings domain.AuthSettings) (*ClientCredentialsProvider, error) {
	if settings.ClientID == "" || settings.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client credentials require auth.client_id and auth.client_secret",
			domain.ErrInvalidInput)
	}

	tokenURL := settings.TokenURL
	if tokenURL == "" {
		if settings.TenantID == "" {
			return nil, fmt.Errorf("%w: client credentials require auth.tenant_id or auth.token_url",
				domain.ErrInvalidInput)
		}
		tokenURL = fmt.Sprintf(microsoftTokenURL, settings.TenantID)
	}

	return &ClientCredentialsProvider{
		clientID:     settings.ClientID,
		clientSecret: settings.ClientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: tokenRequestTimeout},
	}, nil
}

// GetToken performs a client credentials exchange scoped to resource.
func (p *ClientCredentialsProvider) GetToken(ctx context.Context, resource string) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		TokenURL:     p.tokenURL,
		Scopes:       ScopesFor(resource),
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := cfg.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", fmt.Errorf("%w: %s %s", domain.ErrTokenAcquisition,
				retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		}
		return "", fmt.Errorf("%w: %w", domain.ErrTokenAcquisition, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrTokenAcquisition)
	}
	return tok.AccessToken, nil
}

// AuthMethod returns AuthMethodClientCredentials.
func (p *ClientCredentialsProvider) AuthMethod() domain.AuthMethod {
	return domain.AuthMethodClientCredentials
}

// ScopesFor derives the token scopes for a resource.
// An Entra ID resource becomes "<resource>/.default"; a value that is
// already a scope (ends in /.default or is a Google auth scope URL) is kept.
func ScopesFor(resource string) []string {
	resource = strings.TrimSpace(resource)
	switch {
	case resource == "":
		return nil
	case strings.HasSuffix(resource, "/.default"), strings.Contains(resource, "/auth/"):
		return []string{resource}
	default:
		return []string{strings.TrimSuffix(resource, "/") + "/.default"}
	}
}
