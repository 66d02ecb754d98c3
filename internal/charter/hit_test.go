package charter

import "testing"

func TestNewHitAppliesDefaults(t *testing.T) {
	h := NewHit(Listing{URI: "c::ahoy::1"}, DefaultHitDefaults())

	if h.Name != "Unnamed Yacht" || h.Make != "Unknown" || h.Hero != "/default-yacht.jpg" {
		t.Errorf("Expected placeholder fields, got %+v", h)
	}
	if *h.Pricing.Day.From != 2500 || *h.Pricing.Week.From != 14500 || h.Pricing.Currency != "USD" {
		t.Errorf("Expected default pricing, got %+v", h.Pricing)
	}
	if h.OperatingAreas == nil {
		t.Error("Expected empty operating areas, not nil")
	}
}

func TestNewHitInfersRegion(t *testing.T) {
	h := NewHit(Listing{
		URI:         "c::ahoy::2",
		Name:        "Blue Lagoon",
		Description: "Operating Area: Bahamas, Exumas",
	}, DefaultHitDefaults())

	if h.Region != "Caribbean" {
		t.Errorf("Expected Caribbean, got %q", h.Region)
	}
	if len(h.OperatingAreas) != 2 {
		t.Errorf("Expected two operating areas, got %v", h.OperatingAreas)
	}
}

func TestNewHitKeepsListingRegionAndPricing(t *testing.T) {
	h := NewHit(Listing{
		Region:      "Northern Europe",
		Description: "Operating Area: Bahamas",
		Pricing:     &Pricing{Week: PriceFrom{From: floatPtr(9000)}},
	}, DefaultHitDefaults())

	if h.Region != "Northern Europe" {
		t.Errorf("Expected listing region to win, got %q", h.Region)
	}
	if h.Pricing.Day.From != nil || *h.Pricing.Week.From != 9000 || h.Pricing.Currency != "USD" {
		t.Errorf("Expected listing pricing with default currency, got %+v", h.Pricing)
	}
}

func TestApplyEntity(t *testing.T) {
	d := DefaultHitDefaults()
	h := NewHit(Listing{URI: "c::ahoy::3"}, d)

	h.ApplyEntity(&Entity{
		Description: "Operating Area: Croatia",
		Pricing:     &EntityPricing{DayPricingFrom: &PriceValue{DisplayPrice: 300000, DisplayCurrency: "EUR"}},
	}, d)

	if *h.Pricing.Day.From != 3000 || h.Pricing.Currency != "EUR" {
		t.Errorf("Expected entity pricing, got %+v", h.Pricing)
	}
	if h.Region != "East Mediterranean" {
		t.Errorf("Expected region from entity description, got %q", h.Region)
	}
}

func TestApplyEntityWithoutPriceKeepsHitPricing(t *testing.T) {
	d := DefaultHitDefaults()
	h := NewHit(Listing{Pricing: &Pricing{Day: PriceFrom{From: floatPtr(800)}, Currency: "GBP"}}, d)

	h.ApplyEntity(&Entity{}, d)
	h.ApplyEntity(nil, d)

	if *h.Pricing.Day.From != 800 || h.Pricing.Currency != "GBP" {
		t.Errorf("Expected hit pricing to survive, got %+v", h.Pricing)
	}
}

func TestListingOwnedBy(t *testing.T) {
	l := Listing{URI: "c::ahoy::vessel::1"}
	if !l.OwnedBy("c::ahoy") {
		t.Error("Expected prefix match")
	}
	if l.OwnedBy("c::other") || l.OwnedBy("") {
		t.Error("Expected other or empty company not to own listing")
	}
}
