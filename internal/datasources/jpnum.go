package datasources

import (
	"fmt"
	"strconv"
	"strings"
)

// Japanese positional units as they appear in published market tables.
var jpUnits = map[rune]float64{
	'兆': 1e12,
	'億': 1e8,
	'万': 1e4,
}

// ParseJapaneseNumber converts a numeric string that may contain the
// units 兆, 億 and 万 into a float64, e.g. "1兆2345億" or "12,345.6".
// Empty strings and dash placeholders are errors, never zero: a missing
// balance is materially different from a zero balance.
func ParseJapaneseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" || s == "--" || s == "－" {
		return 0, fmt.Errorf("no numeric value in %q", s)
	}

	negative := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "−") {
		negative = true
		s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "−")
	}

	total := 0.0
	current := ""
	parsedAny := false

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			current += string(r)
		default:
			unit, ok := jpUnits[r]
			if !ok {
				return 0, fmt.Errorf("unexpected character %q in number %q", r, s)
			}
			if current == "" {
				return 0, fmt.Errorf("unit %q without digits in %q", r, s)
			}
			v, err := strconv.ParseFloat(current, 64)
			if err != nil {
				return 0, fmt.Errorf("parse %q: %w", current, err)
			}
			total += v * unit
			current = ""
			parsedAny = true
		}
	}

	if current != "" {
		v, err := strconv.ParseFloat(current, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", current, err)
		}
		total += v
		parsedAny = true
	}

	if !parsedAny {
		return 0, fmt.Errorf("no numeric value in %q", s)
	}
	if negative {
		total = -total
	}
	return total, nil
}
