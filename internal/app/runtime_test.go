package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/config"
)

type upstream struct {
	tokenCalls  int32
	searchCalls int32
	server      *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/iam/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.tokenCalls, 1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("assertion") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/website/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.searchCalls, 1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"estHits":1,"hits":[{"uri":"c::ahoy::1","yachtType":"Catamaran","description":"Operating Area: Antigua"}]}`))
	})
	mux.HandleFunc("/website/entity/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pricing":{"weekPricingFrom":{"displayPrice":2100000,"displayCurrency":"USD"}}}`))
	})
	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func testConfig(u *upstream) config.Config {
	cfg := config.Default()
	cfg.Marketplace.BaseURL = u.server.URL
	cfg.Marketplace.CompanyURI = "c::ahoy"
	cfg.Auth.TokenURL = u.server.URL + "/iam/oauth/token"
	cfg.Auth.AllowEphemeralKey = true
	cfg.Fetch.BaseDelay = time.Millisecond
	cfg.Fetch.MaxDelay = 10 * time.Millisecond
	return cfg
}

func TestRuntimeServesSearch(t *testing.T) {
	u := newUpstream(t)
	rt, err := NewRuntime(testConfig(u), NewLogger(io.Discard, 0, "ahoyd-test"))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		rt.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?type=Catamaran&region=Caribbean", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var result charter.SearchResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		hit := result.Hits[0]
		if hit.Region != "Caribbean" || *hit.Pricing.Week.From != 21000 || *hit.Pricing.Day.From != 3000 || !hit.Pricing.Estimated {
			t.Errorf("Unexpected hit: %+v", hit)
		}
	}

	if got := atomic.LoadInt32(&u.tokenCalls); got != 1 {
		t.Errorf("Expected one token exchange, got %d", got)
	}
	if got := atomic.LoadInt32(&u.searchCalls); got != 1 {
		t.Errorf("Expected the second search to be served from cache, got %d calls", got)
	}

	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "ahoy_token_exchanges_total") {
		t.Error("Expected token metrics to be exported")
	}
}

func TestRuntimeRequiresSigningKey(t *testing.T) {
	u := newUpstream(t)
	cfg := testConfig(u)
	cfg.Auth.AllowEphemeralKey = false

	if _, err := NewRuntime(cfg, NewLogger(io.Discard, 0, "ahoyd-test")); err == nil {
		t.Error("Expected an error without a signing key")
	}
}

func TestRuntimeRejectsUnknownBackoff(t *testing.T) {
	u := newUpstream(t)
	cfg := testConfig(u)
	cfg.Fetch.Backoff = "fibonacci"

	if _, err := NewRuntime(cfg, NewLogger(io.Discard, 0, "ahoyd-test")); err == nil {
		t.Error("Expected an error for an unknown backoff strategy")
	}
}
