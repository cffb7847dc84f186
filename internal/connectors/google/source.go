package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/option"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.PageSource = (*Source)(nil)

const (
	// DefaultCustomer addresses the customer of the authenticated admin.
	DefaultCustomer = "my_customer"

	// MaxPageSize is the largest maxResults users.list accepts.
	MaxPageSize = 500

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// neverSignedIn is the lastLoginTime Google reports for users who never signed in.
	neverSignedIn = "1970-01-01T00:00:00.000Z"

	userTypeAdmin  = "Admin"
	userTypeMember = "Member"
)

// Source pages through Workspace users.
type Source struct {
	svc      *admin.Service
	customer string
	pageSize int64
}

// New creates a source over an existing Directory service.
func New(svc *admin.Service, customer string, pageSize int) *Source {
	if customer == "" {
		customer = DefaultCustomer
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Source{svc: svc, customer: customer, pageSize: int64(pageSize)}
}

// NewService creates a Directory service. An empty token disables authentication.
// endpoint overrides the API base URL when set.
func NewService(ctx context.Context, token, endpoint string) (*admin.Service, error) {
	opts := []option.ClientOption{}
	if token == "" {
		opts = append(opts, option.WithoutAuthentication(), option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}))
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		tc := oauth2.NewClient(ctx, ts)
		tc.Timeout = DefaultTimeout
		opts = append(opts, option.WithHTTPClient(tc))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create directory service: %w", err)
	}
	return svc, nil
}

// Build is the driven.SourceBuilder for Google Workspace.
func Build(settings domain.Settings, token string) (driven.PageSource, error) {
	svc, err := NewService(context.Background(), token, settings.Source.Endpoint)
	if err != nil {
		return nil, err
	}
	return New(svc, settings.Source.Customer, settings.Pager.PageSize), nil
}

// Name returns the source type identifier.
func (s *Source) Name() string {
	return string(domain.SourceGoogle)
}

// FetchPage lists one page of users. token is the previous nextPageToken.
func (s *Source) FetchPage(ctx context.Context, token string) (*driven.Page, error) {
	call := s.svc.Users.List().
		Customer(s.customer).
		MaxResults(s.pageSize).
		OrderBy("email").
		Projection("basic").
		Context(ctx)
	if token != "" {
		call = call.PageToken(token)
	}

	resp, err := call.Do()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(err)
	}

	items := make([]driven.RawItem, 0, len(resp.Users))
	for _, u := range resp.Users {
		data, err := json.Marshal(u)
		if err != nil {
			return nil, &domain.SourceError{Kind: domain.ErrFatalSource, Message: "encode user", Err: err}
		}
		items = append(items, driven.RawItem(data))
	}
	return &driven.Page{Items: items, Next: resp.NextPageToken}, nil
}

// user is the subset of the Directory user resource that is mapped.
// Google omits false booleans, so absent suspended and isAdmin mean false.
type user struct {
	ID            string `json:"id"`
	PrimaryEmail  string `json:"primaryEmail"`
	Suspended     bool   `json:"suspended"`
	IsAdmin       bool   `json:"isAdmin"`
	CreationTime  string `json:"creationTime"`
	LastLoginTime string `json:"lastLoginTime"`
	Name          *struct {
		FullName string `json:"fullName"`
	} `json:"name"`
}

// Transform maps a Directory user onto a Record.
func (s *Source) Transform(raw driven.RawItem) (domain.Record, error) {
	var u user
	if err := json.Unmarshal(raw, &u); err != nil {
		return domain.Record{}, fmt.Errorf("%w: google user: %w", domain.ErrInvalidInput, err)
	}

	userType := userTypeMember
	if u.IsAdmin {
		userType = userTypeAdmin
	}

	rec := domain.Record{
		ID:                u.ID,
		UserPrincipalName: optional(u.PrimaryEmail),
		AccountEnabled:    domain.Bool(!u.Suspended),
		UserType:          domain.String(userType),
		CreatedDateTime:   optional(u.CreationTime),
		Mail:              optional(u.PrimaryEmail),
	}
	if u.LastLoginTime != neverSignedIn {
		rec.LastSignInDateTime = optional(u.LastLoginTime)
	}
	if u.Name != nil {
		rec.DisplayName = optional(u.Name.FullName)
	}

	if err := rec.Validate(); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
