package google

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// Reasons Google reports on 403 responses that are quota throttling, not permission failures.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// WrapError classifies a Google API error into the source error taxonomy.
// Errors that are not googleapi errors are transport failures and transient.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &domain.SourceError{Kind: domain.ErrTransientSource, Err: err}
	}

	retryAfter := retryAfter(gerr.Header)
	if isQuotaForbidden(gerr) {
		return &domain.SourceError{
			StatusCode: gerr.Code,
			RetryAfter: retryAfter,
			Message:    gerr.Message,
			Kind:       domain.ErrRateLimited,
			Err:        gerr,
		}
	}

	srcErr := domain.NewSourceError(gerr.Code, gerr.Message, retryAfter)
	srcErr.Err = gerr
	return srcErr
}

func isQuotaForbidden(gerr *googleapi.Error) bool {
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
