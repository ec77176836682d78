package invoice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidNumber is returned when a price or amount cannot be parsed.
var ErrInvalidNumber = errors.New("invalid number")

var currencyReplacer = strings.NewReplacer("€", "", "EUR", "", "eur", "", "$", "", "CLP", "", " ", "", "\u00a0", "", "\t", "")

// ParseDecimal reads a monetary amount written with either decimal mark.
// When both separators appear the last one is the decimal mark; a single comma is
// always a decimal mark ("14,95"), repeated separators are thousands groups.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := currencyReplacer.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidNumber)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' && r != '-' {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
		}
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return d, nil
}

// ErrAmbiguousMargins rejects a comma list such as "1,5" that could be one margin or two.
var ErrAmbiguousMargins = errors.New("ambiguous margin list; separate margins with ';'")

// ParseMargins reads a list of margin multipliers. ';' always separates margins and
// each margin may use either decimal mark. A ',' separates margins only when every
// margin is written with a '.' decimal mark ("1.5,1.7").
func ParseMargins(raw string) ([]decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty margin list", ErrInvalidNumber)
	}
	parts := []string{raw}
	switch {
	case strings.Contains(raw, ";"):
		parts = strings.Split(raw, ";")
	case strings.Contains(raw, ","):
		parts = strings.Split(raw, ",")
		for _, p := range parts {
			if !strings.Contains(p, ".") {
				return nil, fmt.Errorf("%w: %q", ErrAmbiguousMargins, raw)
			}
		}
	}
	out := make([]decimal.Decimal, 0, len(parts))
	for _, p := range parts {
		m, err := ParseDecimal(p)
		if err != nil {
			return nil, fmt.Errorf("margin %q: %w", strings.TrimSpace(p), err)
		}
		out = append(out, m)
	}
	return out, nil
}
