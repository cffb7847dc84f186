package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest per_page GitHub accepts.
	MaxPageSize = 100
)

// Client wraps the go-github client with quota tracking.
type Client struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
	now         func() time.Time
}

// NewClientWithHTTPClient creates a GitHub client with a custom http.Client.
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		gh:          gh.NewClient(httpClient),
		rateLimiter: NewRateLimiter(),
		now:         time.Now,
	}
}

// NewClientWithToken creates a GitHub client with a static access token.
// An empty token makes unauthenticated requests.
func NewClientWithToken(ctx context.Context, token string) *Client {
	if token == "" {
		return NewClientWithHTTPClient(&http.Client{Timeout: DefaultTimeout})
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout

	return NewClientWithHTTPClient(tc)
}

// SetBaseURL points the client at a GitHub Enterprise or test server.
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	c.gh.BaseURL = u
	return nil
}

// ListMembers fetches one page of organisation members.
// It returns the members and the next page number, 0 on the last page.
func (c *Client) ListMembers(ctx context.Context, org string, page, perPage int) ([]*gh.User, int, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	opts := &gh.ListMembersOptions{
		ListOptions: gh.ListOptions{Page: page, PerPage: perPage},
	}
	members, resp, err := c.gh.Organizations.ListMembers(ctx, org, opts)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, 0, wrapError(err, c.now())
	}

	return members, resp.NextPage, nil
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}
