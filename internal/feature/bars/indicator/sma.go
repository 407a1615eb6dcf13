// Package indicator computes technical indicators over ordered bar series.
package indicator

import (
	"github.com/guregu/null/v6"

	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/domain/entity"
)

// DefaultWindow is the SMA window used when none is configured.
const DefaultWindow = 50

// MovingAverage computes the trailing simple moving average of close over
// window bars. bars must belong to one ticker and be sorted by date ascending.
//
// The result has the same length and order as bars. The window at position i
// is [i-window+1, i]; SMA is null for i < window-1 and never looks ahead.
func MovingAverage(bars []entity.Bar, window int) ([]entity.AggregatedBar, error) {
	if window <= 0 {
		return nil, domain.ErrInvalidWindow
	}

	out := make([]entity.AggregatedBar, len(bars))
	sum := 0.0
	for i, b := range bars {
		sum += b.Close
		if i >= window {
			sum -= bars[i-window].Close
		}
		out[i] = entity.AggregatedBar{Bar: b}
		if i >= window-1 {
			out[i].SMA = null.FloatFrom(sum / float64(window))
		}
	}
	return out, nil
}

// Reportable keeps only bars with a fully formed window.
func Reportable(aggs []entity.AggregatedBar) []entity.AggregatedBar {
	out := make([]entity.AggregatedBar, 0, len(aggs))
	for _, a := range aggs {
		if a.SMA.Valid {
			out = append(out, a)
		}
	}
	return out
}
