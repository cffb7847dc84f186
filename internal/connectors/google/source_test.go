package google

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewService(context.Background(), "", srv.URL+"/")
	require.NoError(t, err)
	return New(svc, "C0123", 2)
}

func TestSource_FetchPage(t *testing.T) {
	var gotPath, gotCustomer, gotMax, gotToken string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCustomer = r.URL.Query().Get("customer")
		gotMax = r.URL.Query().Get("maxResults")
		gotToken = r.URL.Query().Get("pageToken")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"users": [
				{"id": "100", "primaryEmail": "ada@example.com", "isAdmin": true},
				{"id": "200", "primaryEmail": "bob@example.com", "suspended": true}
			],
			"nextPageToken": "next-1"
		}`)
	})

	page, err := src.FetchPage(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "/admin/directory/v1/users", gotPath)
	assert.Equal(t, "C0123", gotCustomer)
	assert.Equal(t, "2", gotMax)
	assert.Empty(t, gotToken)
	assert.Equal(t, "next-1", page.Next)
	require.Len(t, page.Items, 2)

	rec, err := src.Transform(page.Items[1])
	require.NoError(t, err)
	assert.Equal(t, "200", rec.ID)
	assert.False(t, *rec.AccountEnabled)

	_, err = src.FetchPage(context.Background(), "next-1")
	require.NoError(t, err)
	assert.Equal(t, "next-1", gotToken)
}

func TestSource_FetchPage_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		header string
		kind   error
		after  time.Duration
	}{
		{
			name:   "too many requests",
			status: 429,
			header: "9",
			body:   `{"error":{"code":429,"message":"slow down"}}`,
			kind:   domain.ErrRateLimited,
			after:  9 * time.Second,
		},
		{
			name:   "quota forbidden",
			status: 403,
			body:   `{"error":{"code":403,"message":"quota","errors":[{"reason":"userRateLimitExceeded"}]}}`,
			kind:   domain.ErrRateLimited,
		},
		{
			name:   "permission forbidden",
			status: 403,
			body:   `{"error":{"code":403,"message":"Not Authorized","errors":[{"reason":"forbidden"}]}}`,
			kind:   domain.ErrFatalSource,
		},
		{
			name:   "unauthorised",
			status: 401,
			body:   `{"error":{"code":401,"message":"Invalid Credentials"}}`,
			kind:   domain.ErrFatalSource,
		},
		{
			name:   "backend error",
			status: 503,
			body:   `{"error":{"code":503,"message":"backendError"}}`,
			kind:   domain.ErrTransientSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := src.FetchPage(context.Background(), "")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var srcErr *domain.SourceError
			require.ErrorAs(t, err, &srcErr)
			assert.Equal(t, tt.status, srcErr.StatusCode)
			assert.Equal(t, tt.after, srcErr.RetryAfter)
		})
	}
}

func TestSource_Transform(t *testing.T) {
	src := New(nil, "", 0)

	t.Run("maps attributes", func(t *testing.T) {
		rec, err := src.Transform(driven.RawItem(`{
			"id": "100",
			"primaryEmail": "ada@example.com",
			"isAdmin": true,
			"creationTime": "2023-03-01T10:00:00.000Z",
			"lastLoginTime": "2024-06-01T08:30:00.000Z",
			"name": {"fullName": "Ada Lovelace"}
		}`))

		require.NoError(t, err)
		assert.Equal(t, "100", rec.ID)
		assert.Equal(t, "ada@example.com", *rec.UserPrincipalName)
		assert.True(t, *rec.AccountEnabled)
		assert.Equal(t, "Admin", *rec.UserType)
		assert.Equal(t, "2023-03-01T10:00:00.000Z", *rec.CreatedDateTime)
		assert.Equal(t, "2024-06-01T08:30:00.000Z", *rec.LastSignInDateTime)
		assert.Equal(t, "Ada Lovelace", *rec.DisplayName)
	})

	t.Run("never signed in", func(t *testing.T) {
		rec, err := src.Transform(driven.RawItem(`{"id":"200","lastLoginTime":"1970-01-01T00:00:00.000Z"}`))

		require.NoError(t, err)
		assert.Nil(t, rec.LastSignInDateTime)
		assert.Equal(t, "Member", *rec.UserType)
		assert.Nil(t, rec.UserPrincipalName)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := src.Transform(driven.RawItem(`{"primaryEmail":"x@example.com"}`))
		assert.ErrorIs(t, err, domain.ErrMissingID)
	})
}

func TestNew_Defaults(t *testing.T) {
	src := New(nil, "", 10000)

	assert.Equal(t, DefaultCustomer, src.customer)
	assert.Equal(t, int64(MaxPageSize), src.pageSize)
	assert.Equal(t, "google", src.Name())
}

func TestWrapError_TransportError(t *testing.T) {
	err := WrapError(fmt.Errorf("dial tcp: connection refused"))

	assert.ErrorIs(t, err, domain.ErrTransientSource)
	assert.Nil(t, WrapError(nil))
}
