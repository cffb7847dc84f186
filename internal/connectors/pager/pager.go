// Package pager turns a PageSource into a lazy page listing with the
// retry, backoff and throttling policy applied to every page fetch.
package pager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Pager implements the interface.
var _ driven.Listing = (*Pager)(nil)

// Config holds the retry policy.
type Config struct {
	// MaxAttempts caps fetches of one page on transient errors.
	MaxAttempts int

	// BackoffBase is the first transient backoff; each retry doubles it.
	BackoffBase time.Duration

	// RateLimitDefault is the wait used when a rate-limited response names none.
	RateLimitDefault time.Duration

	// RequestsPerSecond throttles requests proactively. Zero disables throttling.
	RequestsPerSecond float64
}

// ConfigFromSettings builds a Config from pager settings.
func ConfigFromSettings(s domain.PagerSettings) Config {
	return Config{
		MaxAttempts:       s.MaxAttempts,
		BackoffBase:       s.BackoffBase,
		RateLimitDefault:  s.RateLimitDefault,
		RequestsPerSecond: s.RequestsPerSecond,
	}
}

// Pager follows continuation tokens until the source returns none.
// It holds only the next token and a page counter. It is not safe for
// concurrent use and cannot be restarted.
type Pager struct {
	source  driven.PageSource
	cfg     Config
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error

	token string
	pages int
	done  bool
}

// New creates a pager positioned at the first page of source.
func New(source driven.PageSource, cfg Config) *Pager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	p := &Pager{
		source: source,
		cfg:    cfg,
		sleep:  sleepContext,
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return p
}

// Next fetches the next page. It returns iterator.Done once the page
// without a continuation token has been returned.
func (p *Pager) Next(ctx context.Context) (*driven.Page, error) {
	if p.done {
		return nil, iterator.Done
	}

	page, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}

	p.pages++
	if page.Next != "" && page.Next == p.token {
		p.done = true
		return nil, &domain.SourceError{
			Kind:    domain.ErrFatalSource,
			Message: fmt.Sprintf("page %d repeated its continuation token", p.pages),
		}
	}
	p.token = page.Next
	if page.Next == "" {
		p.done = true
	}
	return page, nil
}

// Transform decodes one raw item through the underlying source.
func (p *Pager) Transform(raw driven.RawItem) (domain.Record, error) {
	return p.source.Transform(raw)
}

// Pages returns the number of pages fetched so far.
func (p *Pager) Pages() int {
	return p.pages
}

// fetch retrieves the current page, applying the retry policy:
//  1. rate-limited responses wait and retry without spending an attempt
//  2. transient errors back off exponentially until MaxAttempts
//  3. anything else is returned immediately
func (p *Pager) fetch(ctx context.Context) (*driven.Page, error) {
	pageNum := p.pages + 1
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("throttle: %w", err)
			}
		}

		page, err := p.source.FetchPage(ctx, p.token)
		if err == nil {
			if page == nil {
				page = &driven.Page{}
			}
			return page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch page %d: %w", pageNum, ctxErr)
		}

		switch {
		case errors.Is(err, domain.ErrRateLimited):
			wait := p.cfg.RateLimitDefault
			var srcErr *domain.SourceError
			if errors.As(err, &srcErr) && srcErr.RetryAfter > 0 {
				wait = srcErr.RetryAfter
			}
			logger.Warn("%s page %d rate limited, waiting %s", p.source.Name(), pageNum, wait)
			if err := p.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case errors.Is(err, domain.ErrTransientSource):
			attempts++
			if attempts >= p.cfg.MaxAttempts {
				return nil, &domain.PageError{Page: pageNum, Attempts: attempts, Err: err}
			}
			wait := p.backoff(attempts)
			logger.Warn("%s page %d attempt %d failed, retrying in %s: %v",
				p.source.Name(), pageNum, attempts, wait, err)
			if err := p.sleep(ctx, wait); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("fetch page %d: %w", pageNum, err)
		}
	}
}

// maxBackoff caps a single transient backoff.
const maxBackoff = 2 * time.Minute

// backoff returns BackoffBase doubled once per previous failed attempt, capped at maxBackoff.
func (p *Pager) backoff(attempt int) time.Duration {
	d := p.cfg.BackoffBase
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
