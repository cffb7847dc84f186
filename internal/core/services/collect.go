package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Collector drains a source listing into a landing snapshot.
type Collector struct {
	workers int
}

// CollectResult reports what collection achieved.
type CollectResult struct {
	// Collected is the number of records confirmed durable in the snapshot.
	Collected int

	// Skipped is the number of items rejected at ingestion.
	Skipped int

	// Pages is the number of pages fetched.
	Pages int

	// Complete is true when every page was landed and the final flush succeeded.
	Complete bool
}

// NewCollector creates a collector that transforms up to workers items at a time.
func NewCollector(workers int) *Collector {
	if workers <= 0 {
		workers = 1
	}
	return &Collector{workers: workers}
}

// Collect fetches pages strictly in order and transforms the items of each
// page concurrently. An item that fails to transform is skipped and counted.
// Any page or landing failure stops collection; records flushed before the
// failure stay durable.
func (c *Collector) Collect(ctx context.Context, listing driven.Listing, w *LandingWriter) (CollectResult, error) {
	var result CollectResult

	for {
		page, err := listing.Next(ctx)
		if errors.Is(err, iterator.Done) {
			break
		}
		result.Pages = listing.Pages()
		if err != nil {
			result.Collected = w.Written()
			return result, fmt.Errorf("collect page %d: %w", listing.Pages()+1, timeoutAware(ctx, err))
		}

		recs, skipped := c.transform(listing, page.Items)
		result.Skipped += skipped

		for _, rec := range recs {
			if err := w.Write(ctx, rec); err != nil {
				result.Collected = w.Written()
				return result, timeoutAware(ctx, err)
			}
		}
		logger.Debug("page %d: %d items, %d skipped, %d landed", listing.Pages(), len(page.Items), skipped, w.Written())
	}

	if err := w.Close(ctx); err != nil {
		result.Collected = w.Written()
		return result, timeoutAware(ctx, err)
	}

	result.Pages = listing.Pages()
	result.Collected = w.Written()
	result.Complete = true
	return result, nil
}

// transform decodes a page with a bounded worker pool.
// Output order follows input order but carries no meaning.
func (c *Collector) transform(listing driven.Listing, items []driven.RawItem) ([]domain.Record, int) {
	out := make([]domain.Record, len(items))
	ok := make([]bool, len(items))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, raw := range items {
		g.Go(func() error {
			rec, err := listing.Transform(raw)
			if err != nil {
				logger.Warn("skipping item %d: %v", i, err)
				return nil
			}
			out[i] = rec
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	recs := make([]domain.Record, 0, len(items))
	skipped := 0
	for i := range out {
		if !ok[i] {
			skipped++
			continue
		}
		recs = append(recs, out[i])
	}
	return recs, skipped
}

// timeoutAware marks errors caused by the run deadline with domain.ErrRunTimeout.
func timeoutAware(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrRunTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrRunTimeout, err)
	}
	return err
}
