package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
)

// Search validates the filters leniently, serves repeated queries from cache
// and otherwise runs the marketplace search and enriches the first hits with
// entity pricing. Dropped filters are returned as warnings.
func (o *Orchestrator) Search(ctx context.Context, params url.Values) (charter.SearchResult, []charter.Warning, error) {
	q, warnings := charter.ParseSearchQuery(params)
	for _, w := range warnings {
		o.logger.Warn("dropping search parameter", "param", w.Param, "value", w.Value, "reason", w.Reason)
	}

	key := q.CacheKey()
	if cached, ok := o.caches.Search.Get(key); ok {
		return cached, warnings, nil
	}

	token, err := o.tokens.Token(ctx)
	if err != nil {
		return charter.SearchResult{}, warnings, fmt.Errorf("search: %w", err)
	}

	resp, err := o.market.Search(ctx, token, q.DownstreamValues(o.company))
	if err != nil {
		o.checkUnauthorized(err)
		return charter.SearchResult{}, warnings, fmt.Errorf("search: %w", err)
	}

	hits := make([]charter.Hit, len(resp.Hits))
	for i, l := range resp.Hits {
		hits[i] = charter.NewHit(l, o.defaults)
	}
	if err := o.enrich(ctx, token, hits); err != nil {
		return charter.SearchResult{}, warnings, fmt.Errorf("search: %w", err)
	}

	result := charter.SearchResult{Total: resp.EstHits, Hits: hits}
	o.caches.Search.Set(key, result, o.responseTTL)
	return result, warnings, nil
}

// enrich looks up entity pricing for the first enrichLimit hits, batchSize at
// a time. A failed lookup leaves the hit with its listing or default pricing.
// Only cancellation of ctx aborts enrichment.
func (o *Orchestrator) enrich(ctx context.Context, token string, hits []charter.Hit) error {
	n := min(o.enrichLimit, len(hits))
	for i := n; i < len(hits); i++ {
		o.metrics.RecordEnrichmentFallback("beyond_cap")
	}

	attempted := &registrations{seen: make(map[string]struct{})}
	for start := 0; start < n; start += o.batchSize {
		end := min(start+o.batchSize, n)
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			hit := &hits[i]
			if hit.URI == "" {
				continue
			}
			g.Go(func() error {
				e, err := o.entity(gctx, token, hit.URI)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					o.logger.Warn("entity lookup failed, using fallback pricing", "uri", hit.URI, "error", err)
					o.metrics.RecordEnrichmentFallback("lookup_failed")
					return nil
				}
				if !e.Pricing.HasPrice() && o.registerBase != "" && attempted.claim(hit.URI) {
					e = o.registerAndRefetch(gctx, token, hit.URI, e)
				}
				hit.ApplyEntity(&e, o.defaults)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// registerAndRefetch registers an unpriced listing for the website and reads
// it again. The marketplace exposes pricing only for registered listings. e
// is returned unchanged when the second read fails.
func (o *Orchestrator) registerAndRefetch(ctx context.Context, token, uri string, e charter.Entity) charter.Entity {
	o.register(ctx, token, uri)

	fresh, err := o.market.Entity(ctx, token, uri)
	if err != nil {
		o.checkUnauthorized(err)
		o.logger.Warn("entity refetch after registration failed", "uri", uri, "error", err)
		return e
	}
	o.caches.Entity.Set(uri, fresh, o.responseTTL)
	return fresh
}

// registrations tracks the listings registered while serving one request.
type registrations struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// claim reports whether uri had not been claimed before.
func (r *registrations) claim(uri string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[uri]; ok {
		return false
	}
	r.seen[uri] = struct{}{}
	return true
}
