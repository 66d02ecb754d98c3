package charter

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number decodes from a JSON number or a numeric string. Anything else,
// null included, decodes as zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number(parseLooseFloat(data))
	return nil
}

// Year is a build or refit year. Zero encodes as "N/A".
type Year int

func (y Year) MarshalJSON() ([]byte, error) {
	if y == 0 {
		return []byte(`"N/A"`), nil
	}
	return []byte(strconv.Itoa(int(y))), nil
}

func (y *Year) UnmarshalJSON(data []byte) error {
	*y = Year(parseLooseFloat(data))
	return nil
}

// StringList decodes from either a single string or an array of strings and
// always encodes as an array.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
		} else {
			*l = StringList{s}
		}
		return nil
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*l = list
		return nil
	}
}

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func parseLooseFloat(data []byte) float64 {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

var naField = json.RawMessage(`"N/A"`)

// isFalsy reports whether raw is absent, null, empty, zero or false.
func isFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", `""`, "0", "false":
		return true
	}
	return false
}

func orNA(raw json.RawMessage) json.RawMessage {
	if isFalsy(raw) {
		return naField
	}
	return raw
}

func orEmptyList(raw json.RawMessage) json.RawMessage {
	if isFalsy(raw) {
		return json.RawMessage("[]")
	}
	return raw
}

func stringOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
