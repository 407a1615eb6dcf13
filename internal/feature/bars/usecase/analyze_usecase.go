package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/domain/entity"
	"market_analyzer/internal/feature/bars/indicator"
	"market_analyzer/internal/feature/bars/presentation"
)

// SeriesReader は保存済みの時系列を日付順に読み出します。
type SeriesReader interface {
	ReadOrdered(ctx context.Context, ticker string) ([]entity.Bar, error)
}

// WindowAggregator はストア側で移動平均を計算できる実装を表します（MongoDB の集計パイプラインなど）。
// AggregateSMA は SMA が確定した行のみを日付順に返します。CountBars は保存済みの行数を返します。
type WindowAggregator interface {
	AggregateSMA(ctx context.Context, ticker string, window int) ([]entity.AggregatedBar, error)
	CountBars(ctx context.Context, ticker string) (int, error)
}

// Renderer は分析結果を成果物（HTMLチャート、xlsx など）として書き出します。
type Renderer interface {
	Render(w io.Writer, s presentation.Series) error
}

// Analysis は1銘柄の移動平均分析の結果です。
type Analysis struct {
	Ticker string
	Window int
	Total  int                    // 読み出した行数
	Bars   []entity.AggregatedBar // SMA が確定した行のみ
}

// AnalyzeUsecase は保存済みの日足から単純移動平均を計算します。
type AnalyzeUsecase struct {
	series   SeriesReader
	pushdown WindowAggregator
}

// NewAnalyzeUsecase は新しい AnalyzeUsecase を作成します。
// pushdown が nil でなければ、移動平均の計算をストアに任せます。
func NewAnalyzeUsecase(series SeriesReader, pushdown WindowAggregator) *AnalyzeUsecase {
	return &AnalyzeUsecase{series: series, pushdown: pushdown}
}

// Bars は指定銘柄の保存済み日足を日付順に返します。
func (au *AnalyzeUsecase) Bars(ctx context.Context, ticker string) ([]entity.Bar, error) {
	bars, err := au.series.ReadOrdered(ctx, strings.ToUpper(strings.TrimSpace(ticker)))
	if err != nil {
		return nil, domain.Stage("read", err)
	}
	return bars, nil
}

// Analyze は指定銘柄の移動平均を計算し、SMA が確定した行を返します。
// window が0以下の場合は既定値を使用します。
func (au *AnalyzeUsecase) Analyze(ctx context.Context, ticker string, window int) (Analysis, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if window <= 0 {
		window = indicator.DefaultWindow
	}
	a := Analysis{Ticker: ticker, Window: window}

	if au.pushdown != nil {
		bars, err := au.pushdown.AggregateSMA(ctx, ticker, window)
		if err != nil {
			return a, domain.Stage("aggregate", err)
		}
		// Total はインプロセス集計と同じく保存済みの行数
		total, err := au.pushdown.CountBars(ctx, ticker)
		if err != nil {
			return a, domain.Stage("read", err)
		}
		a.Bars = bars
		a.Total = total
		au.warnIfEmpty(a)
		return a, nil
	}

	bars, err := au.series.ReadOrdered(ctx, ticker)
	if err != nil {
		return a, domain.Stage("read", err)
	}
	// 日付順であることは集計の前提条件なので、崩れていればエラーにする
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Before(bars[i-1].Date) {
			return a, domain.Stage("read", domain.ErrUnorderedSeries)
		}
	}
	a.Total = len(bars)

	aggs, err := indicator.MovingAverage(bars, window)
	if err != nil {
		return a, domain.Stage("aggregate", err)
	}
	a.Bars = indicator.Reportable(aggs)
	au.warnIfEmpty(a)
	return a, nil
}

// Render は分析結果を r で描画し w に書き出します。
func (au *AnalyzeUsecase) Render(ctx context.Context, ticker string, window int, r Renderer, w io.Writer) (Analysis, error) {
	a, err := au.Analyze(ctx, ticker, window)
	if err != nil {
		return a, err
	}
	s := presentation.NewSeries(a.Ticker, a.Window, a.Bars)
	if err := r.Render(w, s); err != nil {
		return a, domain.Stage("render", err)
	}
	return a, nil
}

func (au *AnalyzeUsecase) warnIfEmpty(a Analysis) {
	if len(a.Bars) == 0 {
		slog.Warn("no bars with a defined moving average", "ticker", a.Ticker, "window", a.Window,
			"rows", a.Total, "error", domain.ErrEmptyResult)
	}
}
