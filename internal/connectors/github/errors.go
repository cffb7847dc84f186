package github

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// wrapError classifies go-github errors into the source error taxonomy.
//
// Rate limit errors are checked before ErrorResponse because go-github
// reports them as distinct types for the same 403/429 statuses.
func wrapError(err error, now time.Time) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		wait := rateLimitErr.Rate.Reset.Sub(now)
		if wait < 0 {
			wait = 0
		}
		return &domain.SourceError{
			StatusCode: statusOf(rateLimitErr.Response),
			RetryAfter: wait,
			Message:    rateLimitErr.Message,
			Kind:       domain.ErrRateLimited,
			Err:        err,
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &domain.SourceError{
			StatusCode: statusOf(abuseErr.Response),
			RetryAfter: abuseErr.GetRetryAfter(),
			Message:    abuseErr.Message,
			Kind:       domain.ErrRateLimited,
			Err:        err,
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		srcErr := domain.NewSourceError(ghErr.Response.StatusCode, ghErr.Message,
			retryAfter(ghErr.Response.Header))
		srcErr.Err = err
		return srcErr
	}

	return &domain.SourceError{Kind: domain.ErrTransientSource, Err: err}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
