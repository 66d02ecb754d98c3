package charter

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultLimit    = 50
	MaxLimit        = 100
	DefaultCurrency = "USD"
	DefaultPriceMin = 0
	DefaultPriceMax = 1000000
)

var (
	CharterTypes = []string{"Bareboat", "Crewed"}
	YachtTypes   = []string{"Gulet", "Sailing", "Catamaran", "Motor", "Power Catamaran", "Classic", "Expedition", "Sport fishing"}
	Currencies   = []string{"USD", "EUR", "GBP", "AUD", "AED", "SGD", "HKD", "JPY", "CAD", "CHF", "BTC", "ETH"}
	Regions      = []string{
		"Africa",
		"Antarctica",
		"Arabian Gulf",
		"Australasia & South Pacific",
		"Bahamas",
		"Caribbean",
		"Indian Ocean & South East Asia",
		"North America",
		"Northern Europe",
		"East Mediterranean",
		"West Mediterranean",
		"South & Central America",
	}
)

// SearchQuery holds the accepted search filters. Nil bounds were not given.
type SearchQuery struct {
	Name        string
	YachtType   string
	Region      string
	CharterType string
	Currency    string
	MinLength   *float64
	MaxLength   *float64
	Sleeps      *float64
	PriceMin    *float64
	PriceMax    *float64
	Limit       int
	Offset      int
}

// Warning describes an inbound parameter that was dropped.
type Warning struct {
	Param  string
	Value  string
	Reason string
}

// ParseSearchQuery keeps every parameter it can validate and reports the rest
// as warnings. It never fails.
func ParseSearchQuery(values url.Values) (SearchQuery, []Warning) {
	q := SearchQuery{Limit: DefaultLimit}
	var warnings []Warning
	drop := func(param, value, reason string) {
		warnings = append(warnings, Warning{Param: param, Value: value, Reason: reason})
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(values.Get(key))
		if value == "" {
			continue
		}

		switch key {
		case "name":
			q.Name = value
		case "type", "yachtType":
			if v, ok := matchEnum(YachtTypes, value); ok {
				q.YachtType = v
			} else {
				drop(key, value, "unknown yacht type")
			}
		case "region":
			if v, ok := matchEnum(Regions, value); ok {
				q.Region = v
			} else {
				drop(key, value, "unknown region")
			}
		case "charterType":
			if v, ok := matchEnum(CharterTypes, value); ok {
				q.CharterType = v
			} else {
				drop(key, value, "unknown charter type")
			}
		case "currency":
			if v, ok := matchEnum(Currencies, value); ok {
				q.Currency = v
			} else {
				drop(key, value, "unsupported currency")
			}
		case "minLength", "maxLength", "sleeps", "priceMin", "priceMax":
			f, ok := parseBound(value)
			if !ok {
				drop(key, value, "not a non-negative number")
				continue
			}
			*q.bound(key) = &f
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > MaxLimit {
				drop(key, value, "limit must be between 1 and "+strconv.Itoa(MaxLimit))
				continue
			}
			q.Limit = n
		case "offset":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				drop(key, value, "offset must be a non-negative integer")
				continue
			}
			q.Offset = n
		default:
			drop(key, value, "unsupported parameter")
		}
	}

	return q, warnings
}

func (q *SearchQuery) bound(key string) **float64 {
	switch key {
	case "minLength":
		return &q.MinLength
	case "maxLength":
		return &q.MaxLength
	case "sleeps":
		return &q.Sleeps
	case "priceMin":
		return &q.PriceMin
	default:
		return &q.PriceMax
	}
}

// Values encodes the query with defaults applied, using the marketplace's
// parameter names.
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	setString := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	setFloat := func(key string, value *float64) {
		if value != nil {
			v.Set(key, strconv.FormatFloat(*value, 'f', -1, 64))
		}
	}

	setString("name", q.Name)
	setString("yachtType", q.YachtType)
	setString("region", q.Region)
	setString("charterType", q.CharterType)
	v.Set("currency", stringOr(q.Currency, DefaultCurrency))
	setFloat("minLength", q.MinLength)
	setFloat("maxLength", q.MaxLength)
	setFloat("sleeps", q.Sleeps)
	if q.PriceMin == nil && q.PriceMax == nil {
		v.Set("priceMin", strconv.Itoa(DefaultPriceMin))
		v.Set("priceMax", strconv.Itoa(DefaultPriceMax))
	} else {
		setFloat("priceMin", q.PriceMin)
		setFloat("priceMax", q.PriceMax)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	return v
}

// DownstreamValues adds the company the search runs on behalf of.
func (q SearchQuery) DownstreamValues(company string) url.Values {
	v := q.Values()
	if company != "" {
		v.Set("company", company)
	}
	return v
}

// CacheKey is identical for queries that differ only in parameter order or
// in spelling out a default.
func (q SearchQuery) CacheKey() string {
	return "search?" + q.Values().Encode()
}

func matchEnum(allowed []string, value string) (string, bool) {
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return a, true
		}
	}
	return "", false
}

func parseBound(value string) (float64, bool) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}
