package schedule

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"
)

// WeekSet is a canonical set of positive week numbers, stored as a
// sorted, deduplicated slice. The zero value (nil) means the entry is
// active every week.
type WeekSet []int

// ParseWeeks decodes a serialized week list into a WeekSet. Numbers and
// numeric strings are accepted; anything else is dropped. Malformed or
// empty input yields an empty set, never an error: sync must not abort
// because of bad historical data, so decoding is maximally tolerant.
func ParseWeeks(raw string) WeekSet {
	if raw == "" || raw == "null" {
		return WeekSet{}
	}

	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return WeekSet{}
	}

	var weeks []int

	parsed.ForEach(func(_, value gjson.Result) bool {
		switch value.Type {
		case gjson.Number:
			n := value.Int()
			if n > 0 && float64(n) == value.Num {
				weeks = append(weeks, int(n))
			}
		case gjson.String:
			// Week numbers persisted by older versions arrive as
			// quoted digits.
			if n := value.Int(); n > 0 && value.Str != "" && isDigits(value.Str) {
				weeks = append(weeks, int(n))
			}
		default:
		}

		return true
	})

	return NewWeekSet(weeks)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return len(s) > 0
}

// NewWeekSet builds a canonical WeekSet from arbitrary ints, dropping
// non-positive values and duplicates.
func NewWeekSet(weeks []int) WeekSet {
	seen := make(map[int]struct{}, len(weeks))

	out := make(WeekSet, 0, len(weeks))

	for _, w := range weeks {
		if w <= 0 {
			continue
		}

		if _, dup := seen[w]; dup {
			continue
		}

		seen[w] = struct{}{}
		out = append(out, w)
	}

	sort.Ints(out)

	return out
}

// Encode returns the canonical string form, a JSON array of ints.
// Parse(Encode(ws)) round-trips to the same set.
func (ws WeekSet) Encode() string {
	if len(ws) == 0 {
		return "[]"
	}

	data, err := json.Marshal([]int(ws))
	if err != nil {
		return "[]"
	}

	return string(data)
}

// Equal reports set equality. Both sides are canonical, so this is a
// positional comparison.
func (ws WeekSet) Equal(other WeekSet) bool {
	if len(ws) != len(other) {
		return false
	}

	for i, w := range ws {
		if other[i] != w {
			return false
		}
	}

	return true
}

// UnmarshalJSON accepts both a native JSON array and a string-serialized
// array. The server sends native lists; rows exported from older local
// databases carry the string form.
func (ws *WeekSet) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*ws = ParseWeeks(asString)
		return nil
	}

	*ws = ParseWeeks(string(data))

	return nil
}

// MarshalJSON always emits the canonical array form.
func (ws WeekSet) MarshalJSON() ([]byte, error) {
	if len(ws) == 0 {
		return []byte("[]"), nil
	}

	return json.Marshal([]int(ws))
}
