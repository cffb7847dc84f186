// Package graph implements a directory source for the Microsoft Graph /users endpoint.
//
// The first request selects the tracked projection with $select and bounds the
// page with $top. Every later request follows the @odata.nextLink returned by
// the previous page verbatim, so the continuation token is an absolute URL.
//
// Errors are classified at this boundary: 429 is rate limited and carries the
// Retry-After delay, 408 and 5xx are transient, other statuses are fatal.
// Transport failures are transient.
package graph
