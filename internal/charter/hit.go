package charter

// Hit is one enriched search result.
type Hit struct {
	URI            string     `json:"uri"`
	Name           string     `json:"name"`
	Hero           string     `json:"hero"`
	Length         Number     `json:"length"`
	Cabins         Number     `json:"cabins"`
	Sleeps         Number     `json:"sleeps"`
	BuiltYear      Year       `json:"builtYear"`
	Make           string     `json:"make"`
	YachtType      StringList `json:"yachtType"`
	Region         string     `json:"region"`
	CharterType    StringList `json:"charterType"`
	OperatingAreas []string   `json:"operatingAreas"`
	Pricing        Pricing    `json:"pricing"`
}

// HitDefaults fill in fields the marketplace left empty.
type HitDefaults struct {
	Name    string
	Make    string
	Hero    string
	Pricing PricingDefaults
}

func DefaultHitDefaults() HitDefaults {
	return HitDefaults{
		Name:    "Unnamed Yacht",
		Make:    "Unknown",
		Hero:    "/default-yacht.jpg",
		Pricing: DefaultPricingDefaults(),
	}
}

// NewHit builds a result from a search listing alone. The listing's own
// pricing is kept when it has any, otherwise the defaults apply. A missing
// region is inferred from the operating areas in the description.
func NewHit(l Listing, d HitDefaults) Hit {
	h := Hit{
		URI:            l.URI,
		Name:           stringOr(l.Name, d.Name),
		Hero:           stringOr(l.Hero, d.Hero),
		Length:         l.Length,
		Cabins:         l.Cabins,
		Sleeps:         l.Sleeps,
		BuiltYear:      l.BuiltYear,
		Make:           stringOr(l.Make, d.Make),
		YachtType:      l.YachtType,
		Region:         l.Region,
		CharterType:    l.CharterType,
		OperatingAreas: OperatingAreas(l.Description),
	}
	if h.OperatingAreas == nil {
		h.OperatingAreas = []string{}
	}
	if h.Region == "" {
		h.Region, _ = InferRegion(h.OperatingAreas)
	}

	if l.Pricing.HasPrice() {
		h.Pricing = *l.Pricing
		if h.Pricing.Currency == "" {
			h.Pricing.Currency = stringOr(d.Pricing.Currency, DefaultCurrency)
		}
	} else {
		h.Pricing = d.Pricing.Pricing()
	}
	return h
}

// ApplyEntity merges an entity lookup into the hit. Entity pricing replaces
// the hit's pricing when the marketplace has a price. The entity description
// is used for region inference when the listing gave neither a region nor
// operating areas.
func (h *Hit) ApplyEntity(e *Entity, d HitDefaults) {
	if e == nil {
		return
	}
	if p, ok := NormalizePricing(e.Pricing, d.Pricing); ok {
		h.Pricing = p
	}
	if len(h.OperatingAreas) == 0 {
		if areas := OperatingAreas(e.Description); len(areas) > 0 {
			h.OperatingAreas = areas
		}
	}
	if h.Region == "" {
		h.Region, _ = InferRegion(h.OperatingAreas)
	}
}

// SearchResult is the /search response body.
type SearchResult struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

// FleetResult is the /fleet response body. EstHits counts the listings owned
// by the company; TotalFetched counts every unique listing retrieved before
// that filter.
type FleetResult struct {
	EstHits      int       `json:"estHits"`
	Hits         []Listing `json:"hits"`
	TotalFetched int       `json:"totalFetched"`
}
