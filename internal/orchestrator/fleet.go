package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
)

// Fleet collects every listing owned by company. It pages through search
// results until a short page or the page limit, then merges the vessel list
// endpoint. Only a failure of the first search page is an error.
func (o *Orchestrator) Fleet(ctx context.Context, company string) (charter.FleetResult, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		company = o.company
	}
	if company == "" {
		return charter.FleetResult{}, charter.Invalidf("company parameter is required")
	}

	key := "fleet:" + company
	if cached, ok := o.caches.Fleet.Get(key); ok {
		return cached, nil
	}

	token, err := o.tokens.Token(ctx)
	if err != nil {
		return charter.FleetResult{}, fmt.Errorf("fleet: %w", err)
	}

	var all []charter.Listing
	seen := make(map[string]struct{})
	add := func(listings []charter.Listing) int {
		added := 0
		for _, l := range listings {
			if l.URI == "" {
				continue
			}
			if _, dup := seen[l.URI]; dup {
				continue
			}
			seen[l.URI] = struct{}{}
			all = append(all, l)
			added++
		}
		return added
	}

	for page := 0; page < o.fleetMaxPages; page++ {
		params := url.Values{}
		params.Set("company", company)
		params.Set("limit", strconv.Itoa(o.fleetPageSize))
		params.Set("offset", strconv.Itoa(page*o.fleetPageSize))
		params.Set("sort", "name")
		params.Set("order", "asc")

		resp, err := o.market.Search(ctx, token, params)
		if err != nil {
			o.checkUnauthorized(err)
			if page == 0 {
				return charter.FleetResult{}, fmt.Errorf("fleet: %w", err)
			}
			o.logger.Warn("fleet page failed, keeping earlier pages", "page", page, "error", err)
			break
		}
		added := add(resp.Hits)
		o.logger.Debug("fleet page fetched", "page", page, "hits", len(resp.Hits), "new", added)
		if len(resp.Hits) < o.fleetPageSize {
			break
		}
	}

	if vessels, err := o.market.ListVessels(ctx, token, company, 0); err != nil {
		o.logger.Warn("vessel list unavailable", "company", company, "error", err)
	} else {
		add(vessels)
	}

	owned := make([]charter.Listing, 0, len(all))
	for _, l := range all {
		if l.OwnedBy(company) {
			owned = append(owned, l)
		}
	}

	result := charter.FleetResult{EstHits: len(owned), Hits: owned, TotalFetched: len(all)}
	o.caches.Fleet.Set(key, result, o.responseTTL)
	return result, nil
}
