// Package normalize resolves provider-specific column layouts into canonical bars.
//
// Providers disagree on column naming: flat ("close"), ticker-qualified
// ("Close_MSFT") or multi-level headers ({"Close", "MSFT"}). Every label is
// flattened to a lower-case, underscore separated name and each canonical
// field is then resolved through an ordered list of rules.
package normalize

import (
	"strings"
	"unicode"
)

// Label is a column label as delivered by a provider. Composite and
// multi-level headers carry one part per level.
type Label []string

// L builds a Label from its parts.
func L(parts ...string) Label { return Label(parts) }

// RawBatch is a provider payload: column labels plus rows of loosely typed cells.
// A nil cell is a null value. Rows shorter than Columns are padded with nulls.
type RawBatch struct {
	Columns []Label
	Rows    [][]any
}

// Len returns the number of rows.
func (b RawBatch) Len() int { return len(b.Rows) }

// Field is a canonical column.
type Field string

const (
	FieldDate   Field = "date"
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
)

// Rule reports whether a flattened column name holds a field for the given
// lower-case ticker.
type Rule func(column, ticker string) bool

// Contains matches columns containing any of the substrings.
func Contains(subs ...string) Rule {
	return func(column, _ string) bool {
		for _, s := range subs {
			if strings.Contains(column, s) {
				return true
			}
		}
		return false
	}
}

// Exact matches a column named exactly name.
func Exact(name string) Rule {
	return func(column, _ string) bool { return column == name }
}

// TickerQualified matches "<field>_<ticker>", e.g. "close_msft".
func TickerQualified(field string) Rule {
	return func(column, ticker string) bool {
		return ticker != "" && column == field+"_"+ticker
	}
}

// FlattenLabel joins the non-empty parts of l with "_", lower-cases the result
// and maps whitespace and separators to single underscores.
func FlattenLabel(l Label) string {
	parts := make([]string, 0, len(l))
	for _, p := range l {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	joined := strings.ToLower(strings.Join(parts, "_"))

	var b strings.Builder
	b.Grow(len(joined))
	lastUnderscore := false
	for _, r := range joined {
		if unicode.IsSpace(r) || r == '_' || r == '-' || r == '.' || r == '/' {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}
	return strings.Trim(b.String(), "_")
}

func defaultRules() map[Field][]Rule {
	rules := map[Field][]Rule{
		FieldDate: {Contains("date", "index")},
	}
	for _, f := range []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume} {
		rules[f] = []Rule{TickerQualified(string(f)), Exact(string(f))}
	}
	return rules
}

// resolve returns the column index of each field that could be matched.
// Rules are tried in order and, for each rule, columns in provider order.
func resolve(rules map[Field][]Rule, columns []string, ticker string) map[Field]int {
	out := make(map[Field]int, len(rules))
	for field, candidates := range rules {
		for _, rule := range candidates {
			idx := -1
			for i, c := range columns {
				if rule(c, ticker) {
					idx = i
					break
				}
			}
			if idx >= 0 {
				out[field] = idx
				break
			}
		}
	}
	return out
}
