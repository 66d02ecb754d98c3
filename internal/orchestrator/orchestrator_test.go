package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/fetch"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/marketplace"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/ttlcache"
)

type fakeTokens struct {
	calls       int32
	invalidated int32
	err         error
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

func (f *fakeTokens) Invalidate() {
	atomic.AddInt32(&f.invalidated, 1)
}

type fakeMarket struct {
	mu           sync.Mutex
	searchCalls  int
	searchParams []url.Values
	entityCalls  map[string]int
	registered   []string

	search      func(params url.Values) (marketplace.SearchResponse, error)
	entity      func(uri string) (charter.Entity, error)
	vessels     []charter.Listing
	vesselsErr  error
	inFlight    int32
	maxInFlight int32
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{entityCalls: make(map[string]int)}
}

func (f *fakeMarket) Search(_ context.Context, _ string, params url.Values) (marketplace.SearchResponse, error) {
	f.mu.Lock()
	f.searchCalls++
	f.searchParams = append(f.searchParams, params)
	f.mu.Unlock()
	return f.search(params)
}

func (f *fakeMarket) Entity(_ context.Context, _ string, uri string) (charter.Entity, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&f.maxInFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&f.maxInFlight, peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	f.entityCalls[uri]++
	f.mu.Unlock()
	if f.entity == nil {
		return charter.Entity{URI: uri}, nil
	}
	return f.entity(uri)
}

func (f *fakeMarket) Register(_ context.Context, _ string, uri, link string) error {
	f.mu.Lock()
	f.registered = append(f.registered, uri+" "+link)
	f.mu.Unlock()
	return errors.New("registration refused")
}

func (f *fakeMarket) ListVessels(context.Context, string, string, int) ([]charter.Listing, error) {
	return f.vessels, f.vesselsErr
}

func (f *fakeMarket) totalEntityCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.entityCalls {
		total += n
	}
	return total
}

func listings(n int) []charter.Listing {
	out := make([]charter.Listing, n)
	for i := range out {
		out[i] = charter.Listing{URI: "c::ahoy::" + strconv.Itoa(i), Name: "Yacht " + strconv.Itoa(i)}
	}
	return out
}

func newTestOrchestrator(market *fakeMarket, tokens *fakeTokens, opts ...Option) *Orchestrator {
	return New(tokens, market, NewCaches(nil), append([]Option{WithCompany("c::ahoy")}, opts...)...)
}

func priced(uri string, displayPrice float64) charter.Entity {
	return charter.Entity{URI: uri, Pricing: &charter.EntityPricing{
		DayPricingFrom: &charter.PriceValue{DisplayPrice: displayPrice, DisplayCurrency: "USD"},
	}}
}

func TestSearchCatamaranCaribbean(t *testing.T) {
	market := newFakeMarket()
	market.search = func(params url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{EstHits: 2, Hits: []charter.Listing{
			{URI: "c::ahoy::1", Name: "Sea Breeze", YachtType: charter.StringList{"Catamaran"}, Region: "Caribbean"},
			{URI: "c::ahoy::2", YachtType: charter.StringList{"Catamaran"}, Description: "Operating Area: Bahamas"},
		}}, nil
	}
	market.entity = func(uri string) (charter.Entity, error) {
		if uri == "c::ahoy::1" {
			return priced(uri, 350000), nil
		}
		return charter.Entity{URI: uri}, nil
	}
	o := newTestOrchestrator(market, &fakeTokens{})

	params := url.Values{"type": {"Catamaran"}, "region": {"Caribbean"}}
	result, warnings, err := o.Search(context.Background(), params)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %+v", warnings)
	}

	sent := market.searchParams[0]
	for key, want := range map[string]string{
		"yachtType": "Catamaran", "region": "Caribbean", "company": "c::ahoy",
		"currency": "USD", "priceMin": "0", "priceMax": "1000000", "limit": "50", "offset": "0",
	} {
		if got := sent.Get(key); got != want {
			t.Errorf("Expected downstream %s=%s, got %q", key, want, got)
		}
	}

	if result.Total != 2 || len(result.Hits) != 2 {
		t.Fatalf("Unexpected result: %+v", result)
	}
	first, second := result.Hits[0], result.Hits[1]
	if *first.Pricing.Day.From != 3500 {
		t.Errorf("Expected entity day price 3500, got %v", *first.Pricing.Day.From)
	}
	if second.Name != "Unnamed Yacht" || *second.Pricing.Day.From != 2500 || *second.Pricing.Week.From != 14500 {
		t.Errorf("Expected defaults for unpriced hit, got %+v", second)
	}
	if second.Region != "Caribbean" {
		t.Errorf("Expected inferred region, got %q", second.Region)
	}
}

func TestSearchIsIdempotentWithinTTL(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{EstHits: 3, Hits: listings(3)}, nil
	}
	tokens := &fakeTokens{}
	o := newTestOrchestrator(market, tokens)
	ctx := context.Background()

	first, _, err := o.Search(ctx, url.Values{"region": {"Caribbean"}, "limit": {"50"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, _, err := o.Search(ctx, url.Values{"region": {"caribbean"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if market.searchCalls != 1 {
		t.Errorf("Expected one downstream search, got %d", market.searchCalls)
	}
	if atomic.LoadInt32(&tokens.calls) != 1 {
		t.Errorf("Expected one token request, got %d", tokens.calls)
	}
	if first.Total != second.Total || len(first.Hits) != len(second.Hits) {
		t.Error("Expected identical results")
	}
}

func TestSearchDropsUnknownType(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{}, nil
	}
	o := newTestOrchestrator(market, &fakeTokens{})

	result, warnings, err := o.Search(context.Background(), url.Values{"type": {"Spaceship"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Param != "type" {
		t.Errorf("Expected a warning for type, got %+v", warnings)
	}
	if market.searchParams[0].Has("yachtType") {
		t.Error("Expected the unknown type not to be sent downstream")
	}
	if result.Hits == nil {
		t.Error("Expected an empty, non-nil hit list")
	}
}

func TestSearchLogsDroppedFilterAsWarning(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{}, nil
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o := newTestOrchestrator(market, &fakeTokens{}, WithLogger(logger))

	if _, _, err := o.Search(context.Background(), url.Values{"type": {"Spaceship"}}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	var record struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
		Param string `json:"param"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(bytes.SplitN(logs.Bytes(), []byte("\n"), 2)[0], &record); err != nil {
		t.Fatalf("Expected a JSON log record, got %q", logs.String())
	}
	if record.Level != "WARN" || record.Param != "type" || record.Value != "Spaceship" {
		t.Errorf("Unexpected log record %+v", record)
	}
}

func TestSearchRegistersUnpricedListings(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{EstHits: 2, Hits: []charter.Listing{{URI: "c::ahoy::1"}, {URI: "c::ahoy::2"}}}, nil
	}
	var mu sync.Mutex
	seen := make(map[string]int)
	market.entity = func(uri string) (charter.Entity, error) {
		mu.Lock()
		seen[uri]++
		n := seen[uri]
		mu.Unlock()
		if uri == "c::ahoy::1" && n == 1 {
			return charter.Entity{URI: uri}, nil
		}
		return priced(uri, 400000), nil
	}
	o := newTestOrchestrator(market, &fakeTokens{}, WithRegistration("https://ahoy.test"))

	result, _, err := o.Search(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(market.registered) != 1 || !strings.HasPrefix(market.registered[0], "c::ahoy::1 ") {
		t.Errorf("Expected only the unpriced listing to be registered, got %v", market.registered)
	}
	if market.entityCalls["c::ahoy::1"] != 2 || market.entityCalls["c::ahoy::2"] != 1 {
		t.Errorf("Unexpected entity lookups %v", market.entityCalls)
	}
	if got := *result.Hits[0].Pricing.Day.From; got != 4000 {
		t.Errorf("Expected refetched price 4000, got %v", got)
	}

	if _, err := o.Details(context.Background(), "c::ahoy::1"); err != nil {
		t.Fatalf("Details: %v", err)
	}
	if market.entityCalls["c::ahoy::1"] != 2 {
		t.Errorf("Expected the refetched entity to be cached, got %d lookups", market.entityCalls["c::ahoy::1"])
	}
}

func TestSearchWithoutRegistrationKeepsDefaults(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{EstHits: 1, Hits: []charter.Listing{{URI: "c::ahoy::1"}}}, nil
	}
	o := newTestOrchestrator(market, &fakeTokens{})

	result, _, err := o.Search(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(market.registered) != 0 || market.totalEntityCalls() != 1 {
		t.Errorf("Expected a single lookup and no registration, got %d lookups, %v", market.totalEntityCalls(), market.registered)
	}
	if got := *result.Hits[0].Pricing.Day.From; got != 2500 {
		t.Errorf("Expected default day price, got %v", got)
	}
}

func TestRegistrationsClaimOnce(t *testing.T) {
	r := &registrations{seen: make(map[string]struct{})}
	if !r.claim("c::1") || r.claim("c::1") || !r.claim("c::2") {
		t.Error("Expected each URI to be claimed exactly once")
	}
}

func TestSearchEnrichesAtMostTwentyHits(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{EstHits: 45, Hits: listings(45)}, nil
	}
	market.entity = func(uri string) (charter.Entity, error) {
		return priced(uri, 100000), nil
	}
	o := newTestOrchestrator(market, &fakeTokens{})

	result, _, err := o.Search(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := market.totalEntityCalls(); got != 20 {
		t.Errorf("Expected 20 entity lookups, got %d", got)
	}
	if got := atomic.LoadInt32(&market.maxInFlight); got > 20 {
		t.Errorf("Expected at most 20 concurrent lookups, got %d", got)
	}
	if *result.Hits[19].Pricing.Day.From != 1000 {
		t.Errorf("Expected hit 19 to be enriched, got %v", *result.Hits[19].Pricing.Day.From)
	}
	if *result.Hits[20].Pricing.Day.From != 2500 {
		t.Errorf("Expected hit 20 to keep default pricing, got %v", *result.Hits[20].Pricing.Day.From)
	}
}

func TestSearchBatchesLookups(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{Hits: listings(10)}, nil
	}
	o := newTestOrchestrator(market, &fakeTokens{}, WithEnrichment(10, 3))

	if _, _, err := o.Search(context.Background(), url.Values{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := atomic.LoadInt32(&market.maxInFlight); got > 3 {
		t.Errorf("Expected at most 3 concurrent lookups, got %d", got)
	}
	if got := market.totalEntityCalls(); got != 10 {
		t.Errorf("Expected 10 lookups, got %d", got)
	}
}

func TestSearchItemFailureDegrades(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{EstHits: 2, Hits: listings(2)}, nil
	}
	market.entity = func(uri string) (charter.Entity, error) {
		if uri == "c::ahoy::0" {
			return charter.Entity{}, &marketplace.Error{Op: marketplace.EndpointEntity, StatusCode: http.StatusBadGateway, Err: fetch.ErrHTTPStatus}
		}
		return priced(uri, 200000), nil
	}
	o := newTestOrchestrator(market, &fakeTokens{})

	result, _, err := o.Search(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("Expected item failure to be swallowed, got %v", err)
	}
	if *result.Hits[0].Pricing.Day.From != 2500 {
		t.Errorf("Expected default pricing for failed item, got %v", *result.Hits[0].Pricing.Day.From)
	}
	if *result.Hits[1].Pricing.Day.From != 2000 {
		t.Errorf("Expected entity pricing for second item, got %v", *result.Hits[1].Pricing.Day.From)
	}
}

func TestSearchDownstreamFailure(t *testing.T) {
	market := newFakeMarket()
	downstream := &marketplace.Error{Op: marketplace.EndpointSearch, StatusCode: http.StatusUnauthorized, Err: fetch.ErrHTTPStatus}
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{}, downstream
	}
	tokens := &fakeTokens{}
	o := newTestOrchestrator(market, tokens)

	_, _, err := o.Search(context.Background(), url.Values{})
	var me *marketplace.Error
	if !errors.As(err, &me) || me.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected wrapped marketplace error, got %v", err)
	}
	if atomic.LoadInt32(&tokens.invalidated) != 1 {
		t.Error("Expected a 401 to invalidate the token")
	}

	if _, _, err := o.Search(context.Background(), url.Values{}); err == nil {
		t.Error("Expected failures not to be cached")
	}
	if market.searchCalls != 2 {
		t.Errorf("Expected the failed search to be retried on the next call, got %d calls", market.searchCalls)
	}
}

func TestSearchTokenFailure(t *testing.T) {
	market := newFakeMarket()
	tokenErr := errors.New("token endpoint down")
	o := newTestOrchestrator(market, &fakeTokens{err: tokenErr})

	if _, _, err := o.Search(context.Background(), url.Values{}); !errors.Is(err, tokenErr) {
		t.Errorf("Expected token error, got %v", err)
	}
	if market.searchCalls != 0 {
		t.Error("Expected no downstream call without a token")
	}
}

func TestDetails(t *testing.T) {
	market := newFakeMarket()
	market.entity = func(uri string) (charter.Entity, error) {
		e := priced(uri, 500000)
		e.Blueprint = &charter.Blueprint{Name: "Aurora"}
		return e, nil
	}
	o := newTestOrchestrator(market, &fakeTokens{}, WithRegistration("https://ahoy.test/"))

	d, err := o.Details(context.Background(), "c::ahoy::1")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Name != "Aurora" || *d.Pricing.Day.From != 5000 {
		t.Errorf("Unexpected details: %+v", d)
	}
	if len(market.registered) != 1 || market.registered[0] != "c::ahoy::1 https://ahoy.test/yacht?uri=c%3A%3Aahoy%3A%3A1" {
		t.Errorf("Expected best-effort registration, got %v", market.registered)
	}

	if _, err := o.Details(context.Background(), "c::ahoy::1"); err != nil {
		t.Fatalf("Details: %v", err)
	}
	if got := market.totalEntityCalls(); got != 1 {
		t.Errorf("Expected cached details, got %d lookups", got)
	}
}

func TestDetailsReusesSearchEntities(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{Hits: listings(1)}, nil
	}
	o := newTestOrchestrator(market, &fakeTokens{})

	if _, _, err := o.Search(context.Background(), url.Values{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := o.Details(context.Background(), "c::ahoy::0"); err != nil {
		t.Fatalf("Details: %v", err)
	}
	if got := market.totalEntityCalls(); got != 1 {
		t.Errorf("Expected the search lookup to be reused, got %d lookups", got)
	}
}

func TestDetailsRequiresURI(t *testing.T) {
	o := newTestOrchestrator(newFakeMarket(), &fakeTokens{})

	if _, err := o.Details(context.Background(), "  "); !errors.Is(err, charter.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestFleetPaginates(t *testing.T) {
	market := newFakeMarket()
	market.search = func(params url.Values) (marketplace.SearchResponse, error) {
		offset, _ := strconv.Atoi(params.Get("offset"))
		switch offset {
		case 0:
			hits := listings(3)
			hits = append(hits, charter.Listing{URI: "c::other::1"})
			return marketplace.SearchResponse{Hits: hits}, nil
		case 4:
			return marketplace.SearchResponse{Hits: []charter.Listing{{URI: "c::ahoy::2"}, {URI: "c::ahoy::9"}}}, nil
		}
		t.Errorf("Unexpected offset %d", offset)
		return marketplace.SearchResponse{}, nil
	}
	market.vessels = []charter.Listing{{URI: "c::ahoy::9"}, {URI: "c::ahoy::10"}}
	o := newTestOrchestrator(market, &fakeTokens{}, WithFleetPaging(4, 20))

	result, err := o.Fleet(context.Background(), "")
	if err != nil {
		t.Fatalf("Fleet: %v", err)
	}
	if market.searchCalls != 2 {
		t.Errorf("Expected to stop after a short page, got %d calls", market.searchCalls)
	}
	if result.TotalFetched != 6 {
		t.Errorf("Expected 6 unique listings fetched, got %d", result.TotalFetched)
	}
	if result.EstHits != 5 || len(result.Hits) != 5 {
		t.Errorf("Expected 5 owned listings, got %d/%d", result.EstHits, len(result.Hits))
	}
}

func TestFleetStopsAtMaxPages(t *testing.T) {
	market := newFakeMarket()
	var page int32
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		n := atomic.AddInt32(&page, 1)
		return marketplace.SearchResponse{Hits: []charter.Listing{{URI: "c::ahoy::" + strconv.Itoa(int(n))}}}, nil
	}
	market.vesselsErr = errors.New("vessel list down")
	o := newTestOrchestrator(market, &fakeTokens{}, WithFleetPaging(1, 3))

	result, err := o.Fleet(context.Background(), "c::ahoy")
	if err != nil {
		t.Fatalf("Fleet: %v", err)
	}
	if market.searchCalls != 3 || result.EstHits != 3 {
		t.Errorf("Expected 3 pages and 3 listings, got %d calls %d hits", market.searchCalls, result.EstHits)
	}
}

func TestFleetFirstPageFailure(t *testing.T) {
	market := newFakeMarket()
	market.search = func(url.Values) (marketplace.SearchResponse, error) {
		return marketplace.SearchResponse{}, &marketplace.Error{Op: marketplace.EndpointSearch, StatusCode: http.StatusForbidden, Err: fetch.ErrHTTPStatus}
	}
	o := newTestOrchestrator(market, &fakeTokens{})

	if _, err := o.Fleet(context.Background(), "c::ahoy"); err == nil {
		t.Error("Expected error when the first page fails")
	}
}

func TestNewCachesReportToObserver(t *testing.T) {
	obs := &countingObserver{}
	caches := NewCaches(obs, ttlcache.WithShards(1))

	caches.Entity.Set("a", charter.Entity{}, time.Minute)
	caches.Entity.Get("a")
	caches.Search.Get("missing")

	if obs.hits["entity"] != 1 || obs.misses["search"] != 1 {
		t.Errorf("Expected per-cache observations, got hits=%v misses=%v", obs.hits, obs.misses)
	}
}

type countingObserver struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func (c *countingObserver) RecordCacheHit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hits == nil {
		c.hits = map[string]int{}
	}
	c.hits[name]++
}

func (c *countingObserver) RecordCacheMiss(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.misses == nil {
		c.misses = map[string]int{}
	}
	c.misses[name]++
}

func (c *countingObserver) RecordCacheSize(string, int) {}
