// Package auth obtains and caches the access token used against the
// marketplace API. A token is minted by signing a JWT-bearer assertion with
// the company's private key and exchanging it at the OAuth token endpoint.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/metrics"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/ttlcache"
)

const tokenSlot = "access_token"

// AssertionSigner mints the assertion presented to the token endpoint.
type AssertionSigner interface {
	Assertion() (string, error)
}

// TokenExchanger trades an assertion for a token.
type TokenExchanger interface {
	Exchange(ctx context.Context, assertion string) (Token, error)
}

// Provider hands out a cached access token, acquiring a new one when the
// cached one has expired. Concurrent acquisitions share one exchange.
type Provider struct {
	signer    AssertionSigner
	exchanger TokenExchanger
	slot      *ttlcache.Cache[string]
	ttl       time.Duration
	margin    time.Duration
	group     singleflight.Group
	metrics   *metrics.Collector
	logger    *slog.Logger
}

type ProviderOption func(*Provider)

// WithTokenTTL sets how long an acquired token is reused.
func WithTokenTTL(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// WithExpiryMargin is subtracted from the endpoint's expires_in when that is
// shorter than the configured TTL.
func WithExpiryMargin(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d >= 0 {
			p.margin = d
		}
	}
}

func WithProviderMetrics(m *metrics.Collector) ProviderOption {
	return func(p *Provider) {
		p.metrics = m
	}
}

func WithProviderLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider stores tokens in slot, which should not be shared with other
// data.
func NewProvider(signer AssertionSigner, exchanger TokenExchanger, slot *ttlcache.Cache[string], opts ...ProviderOption) *Provider {
	p := &Provider{
		signer:    signer,
		exchanger: exchanger,
		slot:      slot,
		ttl:       50 * time.Minute,
		margin:    5 * time.Minute,
		logger:    slog.Default().With("module", "auth"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a valid access token.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if tok, ok := p.slot.Get(tokenSlot); ok {
		return tok, nil
	}

	ch := p.group.DoChan(tokenSlot, func() (any, error) {
		if tok, ok := p.slot.Get(tokenSlot); ok {
			return tok, nil
		}
		// the shared acquisition must outlive a single impatient caller
		return p.acquire(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call acquires a new one.
func (p *Provider) Invalidate() {
	p.slot.Delete(tokenSlot)
}

func (p *Provider) acquire(ctx context.Context) (string, error) {
	assertion, err := p.signer.Assertion()
	if err != nil {
		p.metrics.RecordTokenExchange(StageSign)
		p.logger.Error("sign assertion failed", "error", err)
		return "", &Error{Stage: StageSign, Err: err}
	}

	tok, err := p.exchanger.Exchange(ctx, assertion)
	if err != nil {
		p.metrics.RecordTokenExchange(StageExchange)
		p.logger.Error("token exchange failed", "error", err)
		var authErr *Error
		if errors.As(err, &authErr) {
			return "", err
		}
		return "", &Error{Stage: StageExchange, Err: err}
	}

	ttl := p.cacheTTL(tok.ExpiresIn)
	p.slot.Set(tokenSlot, tok.AccessToken, ttl)
	p.metrics.RecordTokenExchange("success")
	p.logger.Info("access token acquired", "ttl", ttl)
	return tok.AccessToken, nil
}

func (p *Provider) cacheTTL(expiresIn time.Duration) time.Duration {
	ttl := p.ttl
	if expiresIn <= 0 {
		return ttl
	}
	limit := expiresIn - p.margin
	if limit <= 0 {
		limit = expiresIn / 2
	}
	if limit < ttl {
		ttl = limit
	}
	return ttl
}
