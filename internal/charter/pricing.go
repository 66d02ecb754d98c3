package charter

import "math"

// PriceFrom is a starting price; nil means unknown.
type PriceFrom struct {
	From *float64 `json:"from"`
}

// Pricing is the per-listing price summary returned to callers.
type Pricing struct {
	Currency  string    `json:"currency"`
	Day       PriceFrom `json:"day"`
	Week      PriceFrom `json:"week"`
	Estimated bool      `json:"estimated,omitempty"`
}

// HasPrice reports whether either starting price is known.
func (p *Pricing) HasPrice() bool {
	return p != nil && (p.Day.From != nil || p.Week.From != nil)
}

// PricingDefaults are the placeholder prices used when the marketplace has
// none for a listing.
type PricingDefaults struct {
	Day      float64
	Week     float64
	Currency string
}

func DefaultPricingDefaults() PricingDefaults {
	return PricingDefaults{Day: 2500, Week: 14500, Currency: DefaultCurrency}
}

func (d PricingDefaults) Pricing() Pricing {
	return Pricing{
		Currency: stringOr(d.Currency, DefaultCurrency),
		Day:      PriceFrom{From: floatPtr(d.Day)},
		Week:     PriceFrom{From: floatPtr(d.Week)},
	}
}

// PriceValue is a marketplace amount in minor units.
type PriceValue struct {
	DisplayPrice    float64 `json:"displayPrice"`
	DisplayCurrency string  `json:"displayCurrency"`
}

func (v *PriceValue) amount() (float64, bool) {
	if v == nil || v.DisplayPrice <= 0 {
		return 0, false
	}
	return v.DisplayPrice / 100, true
}

func (v *PriceValue) currency() string {
	if v == nil {
		return ""
	}
	return v.DisplayCurrency
}

// NormalizePricing converts marketplace pricing into a Pricing. When only a
// weekly price exists the daily price is estimated as a seventh of it. The
// second result is false when the marketplace had no price at all and the
// defaults were used.
func NormalizePricing(p *EntityPricing, defaults PricingDefaults) (Pricing, bool) {
	if !p.HasPrice() {
		return defaults.Pricing(), false
	}

	out := Pricing{}
	day, hasDay := p.DayPricingFrom.amount()
	week, hasWeek := p.WeekPricingFrom.amount()

	switch {
	case hasDay:
		out.Day.From = floatPtr(day)
	case hasWeek:
		out.Day.From = floatPtr(math.Round(week / 7))
		out.Estimated = true
	default:
		out.Day.From = floatPtr(defaults.Day)
	}
	if hasWeek {
		out.Week.From = floatPtr(week)
	} else {
		out.Week.From = floatPtr(defaults.Week)
	}

	out.Currency = stringOr(p.DayPricingFrom.currency(), stringOr(p.WeekPricingFrom.currency(), stringOr(defaults.Currency, DefaultCurrency)))
	return out, true
}

func floatPtr(f float64) *float64 {
	return &f
}
