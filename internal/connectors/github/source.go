package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.PageSource = (*Source)(nil)

// Source pages through the members of one organisation.
type Source struct {
	client  *Client
	org     string
	perPage int
}

// New creates an organisation members source.
func New(client *Client, org string, perPage int) *Source {
	if perPage <= 0 || perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	return &Source{client: client, org: org, perPage: perPage}
}

// Build is the driven.SourceBuilder for GitHub.
func Build(settings domain.Settings, token string) (driven.PageSource, error) {
	if settings.Source.Org == "" {
		return nil, fmt.Errorf("%w: github source requires an organisation", domain.ErrInvalidInput)
	}

	client := NewClientWithToken(context.Background(), token)
	if settings.Source.Endpoint != "" {
		if err := client.SetBaseURL(settings.Source.Endpoint); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}
	return New(client, settings.Source.Org, settings.Pager.PageSize), nil
}

// Name returns the source type identifier.
func (s *Source) Name() string {
	return string(domain.SourceGitHub)
}

// FetchPage fetches the page whose number is token. An empty token is page 1.
func (s *Source) FetchPage(ctx context.Context, token string) (*driven.Page, error) {
	page := 1
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 1 {
			return nil, &domain.SourceError{
				Kind:    domain.ErrFatalSource,
				Message: fmt.Sprintf("invalid page token %q", token),
			}
		}
		page = n
	}

	members, next, err := s.client.ListMembers(ctx, s.org, page, s.perPage)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	items := make([]driven.RawItem, 0, len(members))
	for _, m := range members {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, &domain.SourceError{Kind: domain.ErrFatalSource, Message: "encode member", Err: err}
		}
		items = append(items, driven.RawItem(data))
	}

	result := &driven.Page{Items: items}
	if next > 0 {
		result.Next = strconv.Itoa(next)
	}
	return result, nil
}

// Transform maps a GitHub user onto a Record.
func (s *Source) Transform(raw driven.RawItem) (domain.Record, error) {
	var u gh.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return domain.Record{}, fmt.Errorf("%w: github user: %w", domain.ErrInvalidInput, err)
	}
	if u.GetID() == 0 {
		return domain.Record{}, domain.ErrMissingID
	}

	rec := domain.Record{
		ID:                strconv.FormatInt(u.GetID(), 10),
		UserPrincipalName: u.Login,
		AccountEnabled:    domain.Bool(u.SuspendedAt == nil),
		UserType:          u.Type,
		DisplayName:       u.Name,
		Mail:              u.Email,
	}
	if u.CreatedAt != nil {
		rec.CreatedDateTime = domain.String(u.CreatedAt.UTC().Format(time.RFC3339))
	}
	return rec, nil
}
