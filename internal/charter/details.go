package charter

import (
	"bytes"
	"encoding/json"
	"strings"
)

const imageVariant = "1280x"

// Details is the shaped /entity-details response body.
type Details struct {
	URI            string         `json:"uri"`
	Name           string         `json:"name"`
	YachtType      StringList     `json:"yachtType"`
	Description    string         `json:"description"`
	Region         string         `json:"region,omitempty"`
	Specifications Specifications `json:"specifications"`
	Performance    Performance    `json:"performance"`
	Amenities      Amenities      `json:"amenities"`
	CabinLayout    []CabinLayout  `json:"cabinLayout"`
	Crew           []Crew         `json:"crew"`
	Pricing        DetailPricing  `json:"pricing"`
	Images         []Image        `json:"images"`
}

type Specifications struct {
	Make             json.RawMessage `json:"make"`
	Model            json.RawMessage `json:"model"`
	BuiltYear        json.RawMessage `json:"builtYear"`
	RefitYear        json.RawMessage `json:"refitYear"`
	Length           json.RawMessage `json:"length"`
	Beam             json.RawMessage `json:"beam"`
	Draft            json.RawMessage `json:"draft"`
	Cabins           json.RawMessage `json:"cabins"`
	Sleeps           json.RawMessage `json:"sleeps"`
	Bathrooms        json.RawMessage `json:"bathrooms"`
	MaxCrew          json.RawMessage `json:"maxCrew"`
	CruisingCapacity json.RawMessage `json:"cruisingCapacity"`
	StaticCapacity   json.RawMessage `json:"staticCapacity"`
	HullType         json.RawMessage `json:"hullType"`
	HullConstruction json.RawMessage `json:"hullConstruction"`
	SuperStructure   json.RawMessage `json:"superStructure"`
	Tonnage          json.RawMessage `json:"tonnage"`
	Decks            json.RawMessage `json:"decks"`
	Architect        json.RawMessage `json:"architect"`
	InteriorDesigner json.RawMessage `json:"interiorDesigner"`
}

type Performance struct {
	TopSpeed     json.RawMessage `json:"topSpeed"`
	CruiseSpeed  json.RawMessage `json:"cruiseSpeed"`
	FuelCapacity json.RawMessage `json:"fuelCapacity"`
	Engines      json.RawMessage `json:"engines"`
}

type Amenities struct {
	Amenities     []json.RawMessage `json:"amenities"`
	Entertainment json.RawMessage   `json:"entertainment"`
	Toys          json.RawMessage   `json:"toys"`
	Tenders       json.RawMessage   `json:"tenders"`
}

type Crew struct {
	Name   string     `json:"name"`
	Avatar string     `json:"avatar"`
	Bio    string     `json:"bio"`
	Roles  StringList `json:"roles"`
}

type PriceRange struct {
	From     *float64 `json:"from"`
	To       *float64 `json:"to"`
	Currency string   `json:"currency"`
}

type DetailPricing struct {
	Day         PriceRange    `json:"day"`
	Week        PriceRange    `json:"week"`
	PricingInfo []PricingInfo `json:"pricingInfo"`
}

type Image struct {
	URL     string `json:"url"`
	Variant string `json:"variant"`
}

// BuildDetails shapes an entity for display. Missing specification values
// become "N/A", list-valued ones become empty lists.
func BuildDetails(e Entity) Details {
	bp := e.Blueprint
	if bp == nil {
		bp = &Blueprint{}
	}

	d := Details{
		URI:         e.URI,
		Name:        stringOr(bp.Name, stringOr(e.Name, DefaultHitDefaults().Name)),
		YachtType:   e.YachtType,
		Description: stringOr(e.Description, "No description available"),
		Specifications: Specifications{
			Make:             orNA(bp.Make),
			Model:            orNA(bp.Model),
			BuiltYear:        orNA(bp.BuiltYear),
			RefitYear:        orNA(bp.RefitYear),
			Length:           orNA(bp.Length),
			Beam:             orNA(bp.Beam),
			Draft:            orNA(bp.Draft),
			Cabins:           orNA(bp.Cabins),
			Sleeps:           orNA(bp.Sleeps),
			Bathrooms:        orNA(bp.Bathrooms),
			MaxCrew:          orNA(bp.MaxCrew),
			CruisingCapacity: orNA(bp.CruisingCapacity),
			StaticCapacity:   orNA(bp.StaticCapacity),
			HullType:         orNA(bp.HullType),
			HullConstruction: orNA(bp.HullConstruction),
			SuperStructure:   orEmptyList(bp.SuperStructure),
			Tonnage:          orNA(bp.Tonnage),
			Decks:            orNA(bp.Decks),
			Architect:        orNA(bp.Architect),
			InteriorDesigner: orNA(bp.InteriorDesigner),
		},
		Performance: Performance{
			TopSpeed:     orNA(bp.TopSpeed),
			CruiseSpeed:  orNA(bp.CruiseSpeed),
			FuelCapacity: orNA(bp.FuelCapacity),
			Engines:      orNA(bp.Engines),
		},
		Amenities: Amenities{
			Amenities:     amenityList(bp.Amenities),
			Entertainment: orNA(bp.Entertainment),
			Toys:          orEmptyList(bp.Toys),
			Tenders:       orEmptyList(bp.Tenders),
		},
		CabinLayout: bp.CabinLayout,
		Crew:        make([]Crew, 0, len(e.Crew)),
		Pricing:     detailPricing(e.Pricing),
		Images:      make([]Image, 0, len(bp.Images)),
	}
	d.Region, _ = RegionFromDescription(e.Description)

	if d.YachtType == nil {
		d.YachtType = StringList{}
	}
	if d.CabinLayout == nil {
		d.CabinLayout = []CabinLayout{}
	}
	for _, m := range e.Crew {
		d.Crew = append(d.Crew, Crew{Name: m.Name, Avatar: m.Avatar, Bio: m.Bio, Roles: m.Role})
	}
	for _, img := range bp.Images {
		d.Images = append(d.Images, Image{URL: img, Variant: strings.ReplaceAll(img, "{imageVariant}", imageVariant)})
	}
	return d
}

// amenityList keeps object amenities as they are and turns bare strings
// into {label, quantity: 1}.
func amenityList(raw []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(raw))
	for _, a := range raw {
		trimmed := bytes.TrimSpace(a)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			var label string
			if err := json.Unmarshal(trimmed, &label); err == nil {
				b, _ := json.Marshal(struct {
					Label    string `json:"label"`
					Quantity int    `json:"quantity"`
				}{label, 1})
				out = append(out, b)
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func detailPricing(p *EntityPricing) DetailPricing {
	if p == nil {
		p = &EntityPricing{}
	}
	amount := func(v *PriceValue) *float64 {
		if f, ok := v.amount(); ok {
			return floatPtr(f)
		}
		return nil
	}

	out := DetailPricing{
		Day: PriceRange{
			From:     amount(p.DayPricingFrom),
			To:       amount(p.DayPricingTo),
			Currency: stringOr(p.DayPricingFrom.currency(), DefaultCurrency),
		},
		Week: PriceRange{
			From:     amount(p.WeekPricingFrom),
			To:       amount(p.WeekPricingTo),
			Currency: stringOr(p.WeekPricingFrom.currency(), DefaultCurrency),
		},
		PricingInfo: p.PricingInfo,
	}
	if out.PricingInfo == nil {
		out.PricingInfo = []PricingInfo{}
	}
	return out
}
