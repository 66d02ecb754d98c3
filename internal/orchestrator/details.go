package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
)

// Details returns the shaped record for one listing.
func (o *Orchestrator) Details(ctx context.Context, uri string) (charter.Details, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return charter.Details{}, charter.Invalidf("URI parameter is required")
	}
	if d, ok := o.caches.Details.Get(uri); ok {
		return d, nil
	}

	token, err := o.tokens.Token(ctx)
	if err != nil {
		return charter.Details{}, fmt.Errorf("details: %w", err)
	}
	o.register(ctx, token, uri)

	e, err := o.entity(ctx, token, uri)
	if err != nil {
		return charter.Details{}, fmt.Errorf("details: %w", err)
	}

	d := charter.BuildDetails(e)
	o.caches.Details.Set(uri, d, o.responseTTL)
	return d, nil
}

// register announces the listing page to the marketplace. Failures are
// logged and otherwise ignored.
func (o *Orchestrator) register(ctx context.Context, token, uri string) {
	if o.registerBase == "" {
		return
	}
	link := strings.TrimRight(o.registerBase, "/") + "/yacht?uri=" + url.QueryEscape(uri)
	if err := o.market.Register(ctx, token, uri, link); err != nil {
		o.logger.Warn("listing registration failed", "uri", uri, "error", err)
	}
}
