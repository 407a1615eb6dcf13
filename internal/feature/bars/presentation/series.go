// Package presentation turns aggregated bars into viewable artifacts.
package presentation

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"market_analyzer/internal/feature/bars/domain/entity"
)

// Point is one rendered trading day.
type Point struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	SMA    float64 `json:"sma"`
	Volume *int64  `json:"volume,omitempty"`
}

// Series is a date-indexed view of the reportable rows of one ticker.
type Series struct {
	Ticker string
	Window int
	Points []Point
}

// NewSeries builds a Series from bars that all carry a defined SMA.
// Bars without an SMA are skipped; missing open/high/low fall back to close.
func NewSeries(ticker string, window int, bars []entity.AggregatedBar) Series {
	s := Series{Ticker: strings.ToUpper(ticker), Window: window, Points: make([]Point, 0, len(bars))}
	for _, b := range bars {
		if !b.SMA.Valid {
			continue
		}
		p := Point{
			Date:  b.Date.Format(time.DateOnly),
			Open:  b.Open.ValueOrZero(),
			High:  b.High.ValueOrZero(),
			Low:   b.Low.ValueOrZero(),
			Close: b.Close,
			SMA:   b.SMA.Float64,
		}
		if !b.Open.Valid {
			p.Open = b.Close
		}
		if !b.High.Valid {
			p.High = b.Close
		}
		if !b.Low.Valid {
			p.Low = b.Close
		}
		if b.Volume.Valid {
			v := b.Volume.Int64
			p.Volume = &v
		}
		s.Points = append(s.Points, p)
	}
	return s
}

// Dates returns the index of the series.
func (s Series) Dates() []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Date
	}
	return out
}

// Empty reports whether there is nothing to plot.
func (s Series) Empty() bool { return len(s.Points) == 0 }

// SMALabel is the legend name of the moving average line.
func (s Series) SMALabel() string { return fmt.Sprintf("%d-Day SMA", s.Window) }

// ArtifactPath returns where the artifact of ticker is written.
func ArtifactPath(dir, ticker, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_analyzer_chart.%s", strings.ToUpper(ticker), strings.TrimPrefix(ext, ".")))
}
