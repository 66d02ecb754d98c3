// Package orchestrator answers search, details and fleet requests by
// combining token acquisition, marketplace calls, enrichment and caching.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/marketplace"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/metrics"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/ttlcache"
)

const (
	DefaultEnrichLimit   = 20
	DefaultBatchSize     = 20
	DefaultResponseTTL   = 5 * time.Minute
	DefaultFleetPageSize = 100
	DefaultFleetMaxPages = 20
)

// TokenSource supplies the bearer token for marketplace calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Marketplace is the subset of the marketplace API the orchestrator uses.
type Marketplace interface {
	Search(ctx context.Context, token string, params url.Values) (marketplace.SearchResponse, error)
	Entity(ctx context.Context, token, uri string) (charter.Entity, error)
	Register(ctx context.Context, token, uri, link string) error
	ListVessels(ctx context.Context, token, company string, limit int) ([]charter.Listing, error)
}

// Caches are the response caches. They are process-wide and shared by every
// request.
type Caches struct {
	Search  *ttlcache.Cache[charter.SearchResult]
	Entity  *ttlcache.Cache[charter.Entity]
	Details *ttlcache.Cache[charter.Details]
	Fleet   *ttlcache.Cache[charter.FleetResult]
}

// NewCaches builds one cache per response kind, each reporting to observer
// under its own name.
func NewCaches(observer ttlcache.Observer, opts ...ttlcache.Option) Caches {
	with := func(name string) []ttlcache.Option {
		out := append([]ttlcache.Option{}, opts...)
		if observer != nil {
			out = append(out, ttlcache.WithObserver(name, observer))
		}
		return out
	}
	return Caches{
		Search:  ttlcache.New[charter.SearchResult](with("search")...),
		Entity:  ttlcache.New[charter.Entity](with("entity")...),
		Details: ttlcache.New[charter.Details](with("details")...),
		Fleet:   ttlcache.New[charter.FleetResult](with("fleet")...),
	}
}

type Orchestrator struct {
	tokens   TokenSource
	market   Marketplace
	caches   Caches
	company  string
	defaults charter.HitDefaults

	enrichLimit   int
	batchSize     int
	responseTTL   time.Duration
	fleetPageSize int
	fleetMaxPages int
	registerBase  string

	metrics *metrics.Collector
	logger  *slog.Logger
}

type Option func(*Orchestrator)

// WithCompany sets the company URI searches run on behalf of.
func WithCompany(company string) Option {
	return func(o *Orchestrator) {
		o.company = company
	}
}

func WithHitDefaults(d charter.HitDefaults) Option {
	return func(o *Orchestrator) {
		o.defaults = d
	}
}

// WithEnrichment sets how many hits get an entity lookup and how many
// lookups run at once.
func WithEnrichment(limit, batchSize int) Option {
	return func(o *Orchestrator) {
		if limit >= 0 {
			o.enrichLimit = limit
		}
		if batchSize > 0 {
			o.batchSize = batchSize
		}
	}
}

func WithResponseTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.responseTTL = d
		}
	}
}

func WithFleetPaging(pageSize, maxPages int) Option {
	return func(o *Orchestrator) {
		if pageSize > 0 {
			o.fleetPageSize = pageSize
		}
		if maxPages > 0 {
			o.fleetMaxPages = maxPages
		}
	}
}

// WithRegistration turns on listing registration before a details lookup
// and for unpriced search hits, which are then looked up once more.
// Listings are registered as baseURL + "/yacht?uri=<uri>".
func WithRegistration(baseURL string) Option {
	return func(o *Orchestrator) {
		o.registerBase = baseURL
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func New(tokens TokenSource, market Marketplace, caches Caches, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tokens:        tokens,
		market:        market,
		caches:        caches,
		defaults:      charter.DefaultHitDefaults(),
		enrichLimit:   DefaultEnrichLimit,
		batchSize:     DefaultBatchSize,
		responseTTL:   DefaultResponseTTL,
		fleetPageSize: DefaultFleetPageSize,
		fleetMaxPages: DefaultFleetMaxPages,
		logger:        slog.Default().With("module", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// checkUnauthorized drops the cached token when the marketplace rejected it,
// so the next request acquires a fresh one.
func (o *Orchestrator) checkUnauthorized(err error) {
	var me *marketplace.Error
	if errors.As(err, &me) && me.StatusCode == http.StatusUnauthorized {
		o.logger.Warn("marketplace rejected access token, invalidating", "op", me.Op)
		o.tokens.Invalidate()
	}
}

// entity returns the entity record for uri, from cache when possible.
func (o *Orchestrator) entity(ctx context.Context, token, uri string) (charter.Entity, error) {
	if e, ok := o.caches.Entity.Get(uri); ok {
		return e, nil
	}
	e, err := o.market.Entity(ctx, token, uri)
	if err != nil {
		o.checkUnauthorized(err)
		return charter.Entity{}, err
	}
	o.caches.Entity.Set(uri, e, o.responseTTL)
	return e, nil
}
