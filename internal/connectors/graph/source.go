package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.PageSource = (*Source)(nil)

const (
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// SelectFields is the projection requested from Graph.
var SelectFields = []string{
	"id",
	domain.FieldUserPrincipalName,
	domain.FieldAccountEnabled,
	domain.FieldUserType,
	domain.FieldCreatedDateTime,
	"signInActivity",
	"displayName",
	"mail",
}

// Source pages through Graph users.
type Source struct {
	client   *http.Client
	endpoint string
	pageSize int
	token    string
}

// New creates a Graph source. An empty token sends no Authorization header.
func New(endpoint string, pageSize int, token string, client *http.Client) *Source {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Source{
		client:   client,
		endpoint: endpoint,
		pageSize: pageSize,
		token:    token,
	}
}

// Build is the driven.SourceBuilder for Graph.
func Build(settings domain.Settings, token string) (driven.PageSource, error) {
	if settings.Source.Endpoint == "" {
		return nil, fmt.Errorf("%w: graph endpoint is empty", domain.ErrInvalidInput)
	}
	if _, err := url.Parse(settings.Source.Endpoint); err != nil {
		return nil, fmt.Errorf("%w: graph endpoint: %w", domain.ErrInvalidInput, err)
	}
	return New(settings.Source.Endpoint, settings.Pager.PageSize, token, nil), nil
}

// Name returns the source type identifier.
func (s *Source) Name() string {
	return string(domain.SourceGraph)
}

// listResponse is one page of the /users collection.
type listResponse struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// errorResponse is the Graph error envelope.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchPage fetches the first page for an empty token, otherwise the nextLink in token.
func (s *Source) FetchPage(ctx context.Context, token string) (*driven.Page, error) {
	pageURL := token
	if pageURL == "" {
		first, err := s.firstPageURL()
		if err != nil {
			return nil, err
		}
		pageURL = first
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, &domain.SourceError{Kind: domain.ErrFatalSource, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.SourceError{Kind: domain.ErrTransientSource, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// A truncated body is a transport failure, not a bad query.
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &domain.SourceError{Kind: domain.ErrTransientSource, Err: err}
		}
		return nil, &domain.SourceError{Kind: domain.ErrFatalSource, Message: "decode page", Err: err}
	}

	items := make([]driven.RawItem, len(body.Value))
	for i, v := range body.Value {
		items[i] = driven.RawItem(v)
	}
	return &driven.Page{Items: items, Next: body.NextLink}, nil
}

// firstPageURL adds $select and $top to the configured endpoint, keeping any
// query parameters it already carries.
func (s *Source) firstPageURL() (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", &domain.SourceError{Kind: domain.ErrFatalSource, Message: "parse endpoint", Err: err}
	}
	q := u.Query()
	if q.Get("$select") == "" {
		q.Set("$select", strings.Join(SelectFields, ","))
	}
	if s.pageSize > 0 {
		q.Set("$top", strconv.Itoa(s.pageSize))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// statusError classifies a non-200 response.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := http.StatusText(resp.StatusCode)
	var envelope errorResponse
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Code + ": " + envelope.Error.Message
	}

	return domain.NewSourceError(resp.StatusCode, message, ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
}

// ParseRetryAfter reads a Retry-After value given in seconds or as an HTTP date.
// Unparseable or past values return zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
