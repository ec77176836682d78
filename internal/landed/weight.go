package landed

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultFallbackWeight applies to format codes that match no known tag.
var DefaultFallbackWeight = decimal.RequireFromString("0.5")

// WeightEntry maps a format tag to its unit weight factor.
type WeightEntry struct {
	Tag    string          `json:"tag"`
	Weight decimal.Decimal `json:"weight"`
}

// WeightTable resolves format codes to unit weights.
type WeightTable struct {
	Entries  []WeightEntry   `json:"entries"`
	Fallback decimal.Decimal `json:"fallback"`
}

// DefaultWeightTable returns the stock table for records, CDs and cassettes.
// Vinyl is listed ahead of CD so a bundle such as "LP+CD" weighs as the record.
func DefaultWeightTable() WeightTable {
	return NewWeightTable([]WeightEntry{
		{Tag: "3-LP", Weight: decimal.RequireFromString("2.8")},
		{Tag: "2-LP", Weight: decimal.RequireFromString("1.9")},
		{Tag: "LP", Weight: decimal.RequireFromString("1.0")},
		{Tag: "CD", Weight: decimal.RequireFromString("0.2")},
		{Tag: "CASSETTE", Weight: decimal.RequireFromString("0.25")},
	}, DefaultFallbackWeight)
}

// NewWeightTable normalizes tags and orders entries from most to least specific.
// Tags of equal length keep the order they were given in.
func NewWeightTable(entries []WeightEntry, fallback decimal.Decimal) WeightTable {
	out := make([]WeightEntry, 0, len(entries))
	for _, e := range entries {
		tag := strings.ToUpper(strings.TrimSpace(e.Tag))
		if tag == "" {
			continue
		}
		out = append(out, WeightEntry{Tag: tag, Weight: e.Weight})
	}
	sortBySpecificity(out)
	return WeightTable{Entries: out, Fallback: fallback}
}

// ParseWeightTable reads a "TAG:WEIGHT,TAG:WEIGHT" list.
func ParseWeightTable(raw string, fallback decimal.Decimal) (WeightTable, error) {
	var entries []WeightEntry
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, ":")
		if idx <= 0 || idx == len(part)-1 {
			return WeightTable{}, fmt.Errorf("weight entry %q: expected TAG:WEIGHT", part)
		}
		w, err := decimal.NewFromString(strings.TrimSpace(part[idx+1:]))
		if err != nil {
			return WeightTable{}, fmt.Errorf("weight entry %q: %w", part, err)
		}
		if w.IsNegative() {
			return WeightTable{}, fmt.Errorf("weight entry %q: weight must not be negative", part)
		}
		entries = append(entries, WeightEntry{Tag: part[:idx], Weight: w})
	}
	if len(entries) == 0 {
		return WeightTable{}, fmt.Errorf("weight table %q has no entries", raw)
	}
	return NewWeightTable(entries, fallback), nil
}

// Classify returns the weight of the most specific tag contained in format.
// Unknown formats get the fallback weight and matched=false; that is not an error.
func (t WeightTable) Classify(format string) (weight decimal.Decimal, matched bool) {
	code := strings.ToUpper(strings.TrimSpace(format))
	if code != "" {
		entries := t.Entries
		if !sortedBySpecificity(entries) {
			// Built as a literal rather than through NewWeightTable.
			entries = make([]WeightEntry, len(t.Entries))
			copy(entries, t.Entries)
			sortBySpecificity(entries)
		}
		for _, e := range entries {
			if strings.Contains(code, strings.ToUpper(e.Tag)) {
				return e.Weight, true
			}
		}
	}
	return t.Fallback, false
}

// Longer tags first so "2-LP" is tried before the "LP" it contains.
func sortBySpecificity(entries []WeightEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].Tag) > len(entries[j].Tag)
	})
}

func sortedBySpecificity(entries []WeightEntry) bool {
	for i := 1; i < len(entries); i++ {
		if len(entries[i].Tag) > len(entries[i-1].Tag) {
			return false
		}
	}
	return true
}
