package presentation

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const priceSeriesName = "Daily Price"

// ChartRenderer writes an interactive HTML candlestick chart with the SMA overlaid.
type ChartRenderer struct {
	Height string
	Theme  string
}

// NewChartRenderer returns a renderer with a dark theme and an 800px tall canvas.
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{Height: "800px", Theme: types.ThemeChalk}
}

// Ext is the artifact file extension.
func (r *ChartRenderer) Ext() string { return "html" }

// Render draws s as HTML to w.
func (r *ChartRenderer) Render(w io.Writer, s Series) error {
	dates := s.Dates()
	candles := make([]opts.KlineData, len(s.Points))
	smas := make([]opts.LineData, len(s.Points))
	for i, p := range s.Points {
		// echarts order: open, close, low, high
		candles[i] = opts.KlineData{Value: [4]float64{p.Open, p.Close, p.Low, p.High}}
		smas[i] = opts.LineData{Value: p.SMA}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s analyzer", s.Ticker),
			Width:     "100%",
			Height:    r.Height,
			Theme:     r.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s Stock Price and %s", s.Ticker, s.SMALabel()),
			Subtitle: "Date / Price (USD)",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	kline.SetXAxis(dates).AddSeries(priceSeriesName, candles)

	line := charts.NewLine()
	line.SetXAxis(dates).AddSeries(s.SMALabel(), smas)
	kline.Overlap(line)

	if err := kline.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
