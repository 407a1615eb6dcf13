package normalize

import (
	"strings"

	"github.com/guregu/null/v6"

	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/domain/entity"
)

// Normalizer turns provider payloads into canonical bars.
type Normalizer struct {
	rules map[Field][]Rule
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithRules appends rules for field after the built-in ones, so a new provider
// can teach the normalizer its column names.
func WithRules(field Field, rules ...Rule) Option {
	return func(n *Normalizer) {
		n.rules[field] = append(n.rules[field], rules...)
	}
}

// New returns a Normalizer with the default rules plus any registered by opts.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{rules: defaultRules()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Result is the outcome of normalizing one batch.
type Result struct {
	Bars      []entity.Bar
	NullClose int                     // rows dropped because close was null
	RowErrors []*domain.RowParseError // rows dropped because a cell failed to parse
}

// Dropped returns the number of input rows that did not make it into Bars.
func (r Result) Dropped() int { return r.NullClose + len(r.RowErrors) }

// Columns returns the flattened column names of batch in provider order.
func Columns(batch RawBatch) []string {
	cols := make([]string, len(batch.Columns))
	for i, l := range batch.Columns {
		cols[i] = FlattenLabel(l)
	}
	return cols
}

// Normalize resolves the batch schema and converts every usable row.
// It fails with a *domain.SchemaResolutionError when no date or close column
// exists. Rows with a null close are skipped; rows with unparsable cells are
// reported in Result.RowErrors. Output keeps input order.
func (n *Normalizer) Normalize(batch RawBatch, ticker string) (Result, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	cols := Columns(batch)
	// ticker はカラム名と同じ規則で平坦化して照合する ("BRK-B" -> "brk_b")
	idx := resolve(n.rules, cols, FlattenLabel(L(ticker)))

	if _, ok := idx[FieldDate]; !ok {
		return Result{}, &domain.SchemaResolutionError{Field: string(FieldDate), Columns: cols}
	}
	if _, ok := idx[FieldClose]; !ok {
		return Result{}, &domain.SchemaResolutionError{Field: string(FieldClose), Columns: cols}
	}

	res := Result{Bars: make([]entity.Bar, 0, len(batch.Rows))}
	for i, row := range batch.Rows {
		cell := func(f Field) any {
			j, ok := idx[f]
			if !ok || j >= len(row) {
				return nil
			}
			return row[j]
		}
		rowErr := func(f Field, v any, err error) *domain.RowParseError {
			return &domain.RowParseError{Row: i, Column: cols[idx[f]], Value: v, Err: err}
		}

		rawClose := cell(FieldClose)
		if isNull(rawClose) {
			res.NullClose++
			continue
		}

		date, err := parseDate(cell(FieldDate))
		if err != nil {
			res.RowErrors = append(res.RowErrors, rowErr(FieldDate, cell(FieldDate), err))
			continue
		}

		closePrice, err := parsePrice(rawClose)
		if err != nil {
			res.RowErrors = append(res.RowErrors, rowErr(FieldClose, rawClose, err))
			continue
		}

		bar := entity.Bar{Ticker: ticker, Date: date, Close: closePrice.Float64}
		var failed *domain.RowParseError
		for _, p := range []struct {
			field Field
			dst   *null.Float
		}{{FieldOpen, &bar.Open}, {FieldHigh, &bar.High}, {FieldLow, &bar.Low}} {
			v, err := parsePrice(cell(p.field))
			if err != nil {
				failed = rowErr(p.field, cell(p.field), err)
				break
			}
			*p.dst = v
		}
		if failed == nil {
			if bar.Volume, err = parseVolume(cell(FieldVolume)); err != nil {
				failed = rowErr(FieldVolume, cell(FieldVolume), err)
			}
		}
		if failed != nil {
			res.RowErrors = append(res.RowErrors, failed)
			continue
		}

		res.Bars = append(res.Bars, bar)
	}
	return res, nil
}
