// Package priceparse parses heterogeneous numeric price strings scraped
// from auction listings into a canonical (amount, currency) pair.
package priceparse

import (
	"fmt"
	"strconv"
	"strings"
)

// Currency is a detected ISO-ish currency code, or "" if none was found.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
)

// Parsed is the result of a successful parse.
type Parsed struct {
	Amount   float64
	Currency Currency
}

// ParseError reports why a price string could not be parsed.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("priceparse: cannot parse %q: %s", e.Input, e.Reason)
}

// MinReasonablePrice and MaxReasonablePrice bound IsReasonablePrice.
const (
	MinReasonablePrice = 1.0
	MaxReasonablePrice = 10_000_000.0
)

// IsReasonablePrice reports whether x falls within the plausible auction
// price range used to sanity-check parsed and upstream prices alike.
func IsReasonablePrice(x float64) bool {
	return x >= MinReasonablePrice && x <= MaxReasonablePrice
}

// Parse extracts a numeric amount and, when detectable, a currency from a
// raw price string such as "1 250,50 €", "1.250,50 €", "€ 1,250.50",
// "1250€" or "EUR 1250".
func Parse(raw string) (Parsed, error) {
	currency := detectCurrency(raw)

	numeric := stripToNumeric(raw)
	if numeric == "" {
		return Parsed{}, &ParseError{Input: raw, Reason: "no digits found"}
	}

	amount, err := parseNumeric(numeric)
	if err != nil {
		return Parsed{}, &ParseError{Input: raw, Reason: err.Error()}
	}

	return Parsed{Amount: amount, Currency: currency}, nil
}

// stripToNumeric keeps only digits, '.', ',', whitespace and the
// non-breaking space that European sites use as a thousands separator.
func stripToNumeric(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == ' ' || r == ' ' || r == '\t':
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// parseNumeric implements the decimal-vs-thousands disambiguation rule: a
// separator is the decimal point when it appears exactly once and its
// trailing digit group has at most two digits; when both '.' and ','
// appear, whichever occurs last in the string is the decimal separator.
func parseNumeric(s string) (float64, error) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty numeric string")
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	var decimalSep byte
	switch {
	case lastDot == -1 && lastComma == -1:
		// pure integer
	case lastDot == -1:
		decimalSep = decideSeparator(s, ',')
	case lastComma == -1:
		decimalSep = decideSeparator(s, '.')
	default:
		// Both present: the one occurring later in the string is decimal.
		if lastDot > lastComma {
			decimalSep = '.'
		} else {
			decimalSep = ','
		}
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '.', ',':
			if c == decimalSep {
				b.WriteByte('.')
			}
			// else: thousands separator, drop it
		default:
			b.WriteByte(c)
		}
	}

	value, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %w", err)
	}
	return value, nil
}

// decideSeparator determines whether sep, the only separator present in s,
// is a decimal point (trailing group of <=2 digits) or a thousands
// separator (anything else, including multiple occurrences).
func decideSeparator(s string, sep byte) byte {
	count := strings.Count(s, string(sep))
	if count != 1 {
		return 0 // thousands separator, always dropped
	}
	idx := strings.IndexByte(s, sep)
	trailing := len(s) - idx - 1
	if trailing > 0 && trailing <= 2 {
		return sep
	}
	return 0
}

func detectCurrency(raw string) Currency {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(raw, "€") || strings.Contains(upper, "EUR"):
		return EUR
	case strings.Contains(raw, "$") || strings.Contains(upper, "USD"):
		return USD
	case strings.Contains(raw, "£") || strings.Contains(upper, "GBP"):
		return GBP
	default:
		return ""
	}
}
