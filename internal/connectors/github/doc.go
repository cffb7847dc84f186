// Package github implements a directory source for the members of a GitHub organisation.
//
// Members are listed with the organisation members API one page at a time.
// The continuation token is the next page number reported by go-github.
//
// # Attribute mapping
//
//   - the numeric user id maps to id (decimal string)
//   - login maps to userPrincipalName
//   - type ("User", "Bot") maps to userType
//   - created_at maps to createdDateTime when the API returns it
//   - suspended_at maps to accountEnabled = false when set
//   - name and email are passed through as displayName and mail
//
// GitHub does not expose sign-in activity, so lastSignInDateTime is always absent.
//
// # Rate Limiting
//
// Proactive throttling is the pager's job. The client adds the reactive half:
// it tracks X-RateLimit-Remaining and X-RateLimit-Reset and, when the quota
// falls below a small buffer, waits for the reset before the next request.
// Primary and secondary rate limit errors are classified as rate limited
// with the reset or Retry-After delay attached.
//
// # Authentication
//
// Any token GitHub accepts works (classic or fine-grained PAT, GitHub App
// installation token). Listing private members requires the read:org scope.
package github
