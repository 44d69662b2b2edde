package market

import (
	"strconv"
	"strings"
)

// ParsePrice converts a heterogeneous vendor price string ("$1.23",
// "1,23 €", "1,234.56") into a USD decimal. It detects which of '.' or ','
// is the decimal separator from the length of the trailing group: a
// trailing group of exactly two digits is treated as the fractional part,
// anything else makes that separator a thousands grouping. Returns false
// when the string is empty or genuinely ambiguous/unparseable.
func ParsePrice(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			digits.WriteRune(r)
		}
	}
	cleaned := digits.String()
	if cleaned == "" {
		return 0, false
	}

	lastDot := strings.LastIndexByte(cleaned, '.')
	lastComma := strings.LastIndexByte(cleaned, ',')

	var decimalSep byte
	switch {
	case lastDot == -1 && lastComma == -1:
		// No separators at all: plain integer amount.
	case lastDot > lastComma:
		decimalSep = '.'
	case lastComma > lastDot:
		decimalSep = ','
	default:
		return 0, false
	}

	if decimalSep != 0 {
		sepIdx := strings.LastIndexByte(cleaned, decimalSep)
		trailing := cleaned[sepIdx+1:]
		if len(trailing) != 2 {
			// Trailing group isn't a 2-digit fraction: treat the separator
			// as a thousands grouping instead, i.e. not a decimal point.
			decimalSep = 0
		}
	}

	normalized := normalizeDigits(cleaned, decimalSep)
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeDigits(cleaned string, decimalSep byte) string {
	var b strings.Builder
	for i := 0; i < len(cleaned); i++ {
		c := cleaned[i]
		switch c {
		case '.', ',':
			if decimalSep != 0 && c == decimalSep {
				b.WriteByte('.')
			}
			// else: thousands separator, drop it
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
