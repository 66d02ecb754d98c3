package charter

import "testing"

func TestNormalizePricingUsesDisplayPrices(t *testing.T) {
	p, ok := NormalizePricing(&EntityPricing{
		DayPricingFrom:  &PriceValue{DisplayPrice: 450000, DisplayCurrency: "EUR"},
		WeekPricingFrom: &PriceValue{DisplayPrice: 2800000, DisplayCurrency: "EUR"},
	}, DefaultPricingDefaults())

	if !ok {
		t.Fatal("Expected marketplace pricing to be used")
	}
	if *p.Day.From != 4500 || *p.Week.From != 28000 || p.Currency != "EUR" || p.Estimated {
		t.Errorf("Unexpected pricing: day=%v week=%v %s estimated=%v", *p.Day.From, *p.Week.From, p.Currency, p.Estimated)
	}
}

func TestNormalizePricingEstimatesDayFromWeek(t *testing.T) {
	p, ok := NormalizePricing(&EntityPricing{
		WeekPricingFrom: &PriceValue{DisplayPrice: 1000000},
	}, DefaultPricingDefaults())

	if !ok {
		t.Fatal("Expected marketplace pricing to be used")
	}
	if *p.Day.From != 1429 {
		t.Errorf("Expected day price round(10000/7)=1429, got %v", *p.Day.From)
	}
	if !p.Estimated {
		t.Error("Expected estimated flag")
	}
	if p.Currency != "USD" {
		t.Errorf("Expected default currency, got %s", p.Currency)
	}
}

func TestNormalizePricingFallsBackToDefaults(t *testing.T) {
	for _, in := range []*EntityPricing{nil, {}, {PricingInfo: []PricingInfo{{Name: "High"}}}} {
		p, ok := NormalizePricing(in, DefaultPricingDefaults())
		if ok {
			t.Errorf("Expected defaults for %+v", in)
		}
		if *p.Day.From != 2500 || *p.Week.From != 14500 || p.Currency != "USD" {
			t.Errorf("Unexpected default pricing: %+v", p)
		}
	}
}

func TestPricingHasPrice(t *testing.T) {
	var nilPricing *Pricing
	if nilPricing.HasPrice() {
		t.Error("Expected nil pricing to have no price")
	}
	if !(&Pricing{Week: PriceFrom{From: floatPtr(1)}}).HasPrice() {
		t.Error("Expected week price to count")
	}
}
