package charter

import (
	"regexp"
	"strings"
)

type regionRule struct {
	Region    string
	Locations []string
}

// regionTable is ordered; the first matching rule wins.
var regionTable = []regionRule{
	{"West Mediterranean", []string{"France", "Monaco", "Italy", "Sardinia", "Corsica", "Spain", "Balearic Islands"}},
	{"East Mediterranean", []string{"Greece", "Croatia", "Montenegro", "Turkey"}},
	{"Caribbean", []string{"Bahamas", "Virgin Islands", "St. Barts", "Antigua"}},
	{"Indian Ocean", []string{"Maldives", "Seychelles"}},
	{"South Pacific", []string{"Fiji", "Tahiti", "French Polynesia"}},
	{"North America", []string{"Florida", "New England", "Alaska"}},
	{"South America", []string{"Brazil", "Argentina"}},
	{"Northern Europe", []string{"Norway", "Sweden", "Denmark", "Netherlands"}},
}

var operatingAreaPattern = regexp.MustCompile(`(?i)Operating Area:([^\n]+)`)

// OperatingAreas extracts the comma separated list following
// "Operating Area:" in a listing description.
func OperatingAreas(description string) []string {
	m := operatingAreaPattern.FindStringSubmatch(description)
	if m == nil {
		return nil
	}
	var areas []string
	for _, part := range strings.Split(m[1], ",") {
		if area := strings.TrimSpace(part); area != "" {
			areas = append(areas, area)
		}
	}
	return areas
}

// InferRegion maps operating areas onto a broad region. An area matches a
// rule when it contains, case-insensitively, one of the rule's locations or
// the region name itself.
func InferRegion(areas []string) (string, bool) {
	if len(areas) == 0 {
		return "", false
	}
	lowered := make([]string, len(areas))
	for i, a := range areas {
		lowered[i] = strings.ToLower(a)
	}

	for _, rule := range regionTable {
		name := strings.ToLower(rule.Region)
		for _, area := range lowered {
			if strings.Contains(area, name) {
				return rule.Region, true
			}
			for _, loc := range rule.Locations {
				if strings.Contains(area, strings.ToLower(loc)) {
					return rule.Region, true
				}
			}
		}
	}
	return "", false
}

// RegionFromDescription combines OperatingAreas and InferRegion.
func RegionFromDescription(description string) (string, bool) {
	return InferRegion(OperatingAreas(description))
}
