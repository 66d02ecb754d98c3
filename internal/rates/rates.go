// Package rates converts between currencies using a USD based rate table
// that is refreshed at most once per TTL.
package rates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/fetch"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/ttlcache"
)

const (
	DefaultURL = "https://api.exchangerate-api.com/v4/latest/USD"
	DefaultTTL = time.Hour
	cacheKey   = "rates:USD"
)

// Conversion is the /currency response body. Rates is set when no target
// currency was requested, the remaining fields otherwise.
type Conversion struct {
	Base            string             `json:"base"`
	Timestamp       time.Time          `json:"timestamp"`
	Rates           map[string]float64 `json:"rates"`
	To              string             `json:"to,omitempty"`
	Amount          *float64           `json:"amount,omitempty"`
	ConvertedAmount *float64           `json:"convertedAmount,omitempty"`
	Rate            *float64           `json:"rate,omitempty"`
}

type Converter struct {
	client *fetch.Client
	url    string
	ttl    time.Duration
	cache  *ttlcache.Cache[map[string]float64]
	now    func() time.Time
}

type Option func(*Converter)

func WithURL(u string) Option {
	return func(c *Converter) {
		if u != "" {
			c.url = u
		}
	}
}

func WithTTL(d time.Duration) Option {
	return func(c *Converter) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		if now != nil {
			c.now = now
		}
	}
}

func NewConverter(client *fetch.Client, cache *ttlcache.Cache[map[string]float64], opts ...Option) *Converter {
	c := &Converter{
		client: client,
		url:    DefaultURL,
		ttl:    DefaultTTL,
		cache:  cache,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert expresses amount of from in to. An empty to returns every rate
// relative to from instead.
func (c *Converter) Convert(ctx context.Context, from, to string, amount float64) (Conversion, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" {
		from = charter.DefaultCurrency
	}

	table, err := c.table(ctx)
	if err != nil {
		return Conversion{}, err
	}

	fromRate, ok := table[from]
	if !ok || fromRate <= 0 {
		return Conversion{}, charter.Invalidf("Currency '%s' not supported", from)
	}

	out := Conversion{Base: from, Timestamp: c.now().UTC(), Rates: map[string]float64{}}
	if to == "" {
		for code, rate := range table {
			out.Rates[code] = rate / fromRate
		}
		return out, nil
	}

	toRate, ok := table[to]
	if !ok {
		return Conversion{}, charter.Invalidf("Currency '%s' not supported", to)
	}
	rate := toRate / fromRate
	converted := amount * rate
	out.To = to
	out.Amount = &amount
	out.Rate = &rate
	out.ConvertedAmount = &converted
	return out, nil
}

func (c *Converter) table(ctx context.Context) (map[string]float64, error) {
	if table, ok := c.cache.Get(cacheKey); ok {
		return table, nil
	}

	var resp struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := c.client.DoJSON(ctx, fetch.Request{Method: http.MethodGet, URL: c.url, Endpoint: "exchange_rates"}, &resp); err != nil {
		return nil, fmt.Errorf("rates: fetch table: %w", err)
	}
	if len(resp.Rates) == 0 {
		return nil, errors.New("rates: empty rate table")
	}
	if _, ok := resp.Rates["USD"]; !ok {
		resp.Rates["USD"] = 1
	}
	c.cache.Set(cacheKey, resp.Rates, c.ttl)
	return resp.Rates, nil
}
