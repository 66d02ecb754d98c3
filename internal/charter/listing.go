package charter

import (
	"encoding/json"
	"strings"
)

// Listing is one hit of the marketplace search endpoint.
type Listing struct {
	URI         string     `json:"uri"`
	Name        string     `json:"name"`
	Hero        string     `json:"hero"`
	Length      Number     `json:"length"`
	Cabins      Number     `json:"cabins"`
	Sleeps      Number     `json:"sleeps"`
	BuiltYear   Year       `json:"builtYear"`
	Make        string     `json:"make"`
	YachtType   StringList `json:"yachtType"`
	Region      string     `json:"region"`
	CharterType StringList `json:"charterType"`
	Description string     `json:"description"`
	Pricing     *Pricing   `json:"pricing"`
}

// Entity is the marketplace's full record for one listing.
type Entity struct {
	URI         string         `json:"uri"`
	Name        string         `json:"name"`
	YachtType   StringList     `json:"yachtType"`
	Description string         `json:"description"`
	Blueprint   *Blueprint     `json:"blueprint"`
	Crew        []CrewMember   `json:"crew"`
	Pricing     *EntityPricing `json:"pricing"`
}

// Blueprint carries vessel specifications. Most values are passed through
// untouched because the marketplace mixes numbers and strings for them.
type Blueprint struct {
	Name             string            `json:"name"`
	Make             json.RawMessage   `json:"make"`
	Model            json.RawMessage   `json:"model"`
	BuiltYear        json.RawMessage   `json:"builtYear"`
	RefitYear        json.RawMessage   `json:"refitYear"`
	Length           json.RawMessage   `json:"length"`
	Beam             json.RawMessage   `json:"beam"`
	Draft            json.RawMessage   `json:"draft"`
	Cabins           json.RawMessage   `json:"cabins"`
	Sleeps           json.RawMessage   `json:"sleeps"`
	Bathrooms        json.RawMessage   `json:"bathrooms"`
	MaxCrew          json.RawMessage   `json:"maxCrew"`
	CruisingCapacity json.RawMessage   `json:"cruisingCapacity"`
	StaticCapacity   json.RawMessage   `json:"staticCapacity"`
	HullType         json.RawMessage   `json:"hullType"`
	HullConstruction json.RawMessage   `json:"hullConstruction"`
	SuperStructure   json.RawMessage   `json:"superStructure"`
	Tonnage          json.RawMessage   `json:"tonnage"`
	Decks            json.RawMessage   `json:"decks"`
	Architect        json.RawMessage   `json:"architect"`
	InteriorDesigner json.RawMessage   `json:"interiorDesigner"`
	TopSpeed         json.RawMessage   `json:"topSpeed"`
	CruiseSpeed      json.RawMessage   `json:"cruiseSpeed"`
	FuelCapacity     json.RawMessage   `json:"fuelCapacity"`
	Engines          json.RawMessage   `json:"engines"`
	Amenities        []json.RawMessage `json:"amenities"`
	Entertainment    json.RawMessage   `json:"entertainment"`
	Toys             json.RawMessage   `json:"toys"`
	Tenders          json.RawMessage   `json:"tenders"`
	CabinLayout      []CabinLayout     `json:"cabinLayout"`
	Images           []string          `json:"images"`
	Hero             string            `json:"hero"`
}

type CabinLayout struct {
	Label    string `json:"label"`
	Quantity Number `json:"quantity"`
}

type CrewMember struct {
	Name   string     `json:"name"`
	Avatar string     `json:"avatar"`
	Bio    string     `json:"bio"`
	Role   StringList `json:"role"`
}

// EntityPricing is the marketplace price block. Amounts are in minor units.
type EntityPricing struct {
	DayPricingFrom  *PriceValue   `json:"dayPricingFrom"`
	DayPricingTo    *PriceValue   `json:"dayPricingTo"`
	WeekPricingFrom *PriceValue   `json:"weekPricingFrom"`
	WeekPricingTo   *PriceValue   `json:"weekPricingTo"`
	PricingInfo     []PricingInfo `json:"pricingInfo"`
}

// HasPrice reports whether a starting day or week price is present.
func (p *EntityPricing) HasPrice() bool {
	return p != nil && (p.DayPricingFrom != nil || p.WeekPricingFrom != nil)
}

type PricingInfo struct {
	Name           string          `json:"name"`
	EffectiveDates json.RawMessage `json:"effectiveDates,omitempty"`
	Pricing        json.RawMessage `json:"pricing,omitempty"`
	InclusionZones json.RawMessage `json:"inclusionZones,omitempty"`
	ExclusionZones json.RawMessage `json:"exclusionZones,omitempty"`
	PetsAllowed    *bool           `json:"petsAllowed,omitempty"`
}

// OwnedBy reports whether the listing URI belongs to company.
func (l Listing) OwnedBy(company string) bool {
	return company != "" && strings.HasPrefix(l.URI, company)
}
