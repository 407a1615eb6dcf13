package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"market_analyzer/internal/feature/bars/domain/entity"
)

var (
	errNotPositive = errors.New("price must be positive")
	errNegative    = errors.New("volume must not be negative")
	errFractional  = errors.New("volume must be an integer")
	errNullDate    = errors.New("date is null")
	errDateLayout  = errors.New("unrecognized date format")
	errNotFinite   = errors.New("value is not finite")
	errUnsupported = errors.New("unsupported cell type")
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006/01/02",
}

// nullTokens are string cells that providers use for missing values.
var nullTokens = map[string]struct{}{
	"": {}, "nan": {}, "null": {}, "none": {}, "n/a": {}, "-": {},
}

// isNull reports whether a cell carries no value.
func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		_, ok := nullTokens[strings.ToLower(strings.TrimSpace(x))]
		return ok
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case *float64:
		return x == nil || math.IsNaN(*x)
	case null.Float:
		return !x.Valid || math.IsNaN(x.Float64)
	case null.Int:
		return !x.Valid
	case null.String:
		return !x.Valid || isNull(x.String)
	}
	return false
}

// toDecimal converts a numeric cell. A null cell yields ok=false and no error.
func toDecimal(v any) (d decimal.Decimal, ok bool, err error) {
	if isNull(v) {
		return decimal.Zero, false, nil
	}
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true, nil
	case string:
		d, err = decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(x), ",", ""))
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case float64:
		if math.IsInf(x, 0) {
			return decimal.Zero, false, errNotFinite
		}
		d = decimal.NewFromFloat(x)
	case float32:
		if math.IsInf(float64(x), 0) {
			return decimal.Zero, false, errNotFinite
		}
		d = decimal.NewFromFloat32(x)
	case *float64:
		return toDecimal(*x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int32:
		d = decimal.NewFromInt32(x)
	case int64:
		d = decimal.NewFromInt(x)
	case uint32:
		d = decimal.NewFromInt(int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return decimal.Zero, false, errNotFinite
		}
		d = decimal.NewFromInt(int64(x))
	case null.Float:
		return toDecimal(x.Float64)
	case null.Int:
		d = decimal.NewFromInt(x.Int64)
	case null.String:
		return toDecimal(x.String)
	default:
		return decimal.Zero, false, fmt.Errorf("%w %T", errUnsupported, v)
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

// parsePrice parses an optional positive price.
func parsePrice(v any) (null.Float, error) {
	d, ok, err := toDecimal(v)
	if err != nil || !ok {
		return null.Float{}, err
	}
	if !d.IsPositive() {
		return null.Float{}, errNotPositive
	}
	return null.FloatFrom(d.InexactFloat64()), nil
}

// parseVolume parses an optional non-negative integer volume.
func parseVolume(v any) (null.Int, error) {
	d, ok, err := toDecimal(v)
	if err != nil || !ok {
		return null.Int{}, err
	}
	if d.IsNegative() {
		return null.Int{}, errNegative
	}
	if !d.IsInteger() {
		return null.Int{}, errFractional
	}
	return null.IntFrom(d.IntPart()), nil
}

// parseDate parses a date-like cell into a calendar date at midnight UTC.
// Numbers are read as Unix seconds.
func parseDate(v any) (time.Time, error) {
	if isNull(v) {
		return time.Time{}, errNullDate
	}
	switch x := v.(type) {
	case time.Time:
		return entity.CalendarDate(x), nil
	case *time.Time:
		if x == nil {
			return time.Time{}, errNullDate
		}
		return entity.CalendarDate(*x), nil
	case null.Time:
		if !x.Valid {
			return time.Time{}, errNullDate
		}
		return entity.CalendarDate(x.Time), nil
	case string:
		return parseDateString(x)
	case null.String:
		return parseDateString(x.String)
	case json.Number:
		sec, err := x.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return entity.CalendarDate(time.Unix(sec, 0).UTC()), nil
	case int64:
		return entity.CalendarDate(time.Unix(x, 0).UTC()), nil
	case int:
		return entity.CalendarDate(time.Unix(int64(x), 0).UTC()), nil
	case float64:
		if math.IsInf(x, 0) {
			return time.Time{}, errNotFinite
		}
		return entity.CalendarDate(time.Unix(int64(x), 0).UTC()), nil
	}
	return time.Time{}, fmt.Errorf("%w %T", errUnsupported, v)
}

func parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return entity.CalendarDate(t), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return entity.CalendarDate(time.Unix(sec, 0).UTC()), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", errDateLayout, s)
}
