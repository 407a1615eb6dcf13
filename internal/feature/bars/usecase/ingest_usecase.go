// Package usecase は日足データの取り込みと移動平均分析のビジネスロジックを実装します。
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/domain/entity"
	"market_analyzer/internal/feature/bars/normalize"
)

// MarketProvider は外部の株価データ提供元を抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type MarketProvider interface {
	// Name はログ出力用の提供元名を返します。
	Name() string
	// FetchBars は [start, end) の日足を提供元のカラム構成のまま返します。
	FetchBars(ctx context.Context, ticker string, start, end time.Time) (normalize.RawBatch, error)
}

// SeriesStore は銘柄ごとに分割された時系列ストアを抽象化します。
type SeriesStore interface {
	// EnsureSeries は時系列コレクション（テーブル）を用意します。
	// 既に存在する場合は domain.ErrPartitionAlreadyExists を返すことがあります。
	EnsureSeries(ctx context.Context) error
	// Replace は指定銘柄の既存行をすべて bars で置き換えます。
	Replace(ctx context.Context, ticker string, bars []entity.Bar) error
	// ReadOrdered は指定銘柄の行を日付の昇順で返します。
	ReadOrdered(ctx context.Context, ticker string) ([]entity.Bar, error)
}

// IngestObserver は取り込み結果をメトリクスとして記録します。
type IngestObserver interface {
	ObserveIngest(ticker string, fetched, stored, nullClose, rowErrors int, err error)
}

// IngestReport は1回の取り込み実行の結果です。
type IngestReport struct {
	Ticker         string
	Provider       string
	Fetched        int // 提供元から受け取った行数
	Stored         int // 保存した行数
	NullClose      int // 終値が欠損していたため除外した行数
	RowErrors      int // パースに失敗して除外した行数
	DuplicateDates int // 同一日付が重複していた行数（除外はしない）
	Empty          bool
}

// IngestUsecase は外部APIから日足を取得し、正規化してストアへ全件置換で保存します。
type IngestUsecase struct {
	market     MarketProvider
	store      SeriesStore
	normalizer *normalize.Normalizer
	observer   IngestObserver
}

// NewIngestUsecase は新しい IngestUsecase を作成します。observer は nil でも構いません。
func NewIngestUsecase(market MarketProvider, store SeriesStore, normalizer *normalize.Normalizer, observer IngestObserver) *IngestUsecase {
	if normalizer == nil {
		normalizer = normalize.New()
	}
	return &IngestUsecase{market: market, store: store, normalizer: normalizer, observer: observer}
}

// Ingest は1銘柄の [start, end) の日足を取り込みます。
// 同じ入力で何度実行してもストアの最終状態は同じになります。
// 致命的なエラーは失敗したステージ名付きの *domain.StageError で返します。
func (iu *IngestUsecase) Ingest(ctx context.Context, ticker string, start, end time.Time) (report IngestReport, err error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	report = IngestReport{Ticker: ticker, Provider: iu.market.Name()}
	defer func() {
		if iu.observer != nil {
			iu.observer.ObserveIngest(ticker, report.Fetched, report.Stored, report.NullClose, report.RowErrors, err)
		}
	}()

	// 時系列コレクションを用意（既存ならそのまま続行）
	if err := iu.store.EnsureSeries(ctx); err != nil {
		if !errors.Is(err, domain.ErrPartitionAlreadyExists) {
			return report, domain.Stage("store", err)
		}
		slog.Info("series collection already exists, proceeding")
	}

	raw, err := iu.market.FetchBars(ctx, ticker, start, end)
	if err != nil {
		return report, domain.Stage("fetch", err)
	}
	report.Fetched = raw.Len()
	slog.Info("fetched bars", "ticker", ticker, "provider", report.Provider, "rows", report.Fetched,
		"start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))

	res, err := iu.normalizer.Normalize(raw, ticker)
	if err != nil {
		slog.Error("could not resolve provider schema", "ticker", ticker, "columns", normalize.Columns(raw), "error", err)
		return report, domain.Stage("normalize", err)
	}
	report.NullClose = res.NullClose
	report.RowErrors = len(res.RowErrors)
	for _, re := range res.RowErrors {
		// 行単位のエラーは致命的ではないため、ログに出力して続行する
		slog.Warn("dropped unparsable row", "ticker", ticker, "row", re.Row, "column", re.Column, "error", re.Err)
	}
	if res.NullClose > 0 {
		slog.Info("dropped rows without close price", "ticker", ticker, "rows", res.NullClose)
	}

	report.DuplicateDates = countDuplicateDates(res.Bars)
	if report.DuplicateDates > 0 {
		// 重複はそのまま保存する（提供元データの整合性の問題として報告のみ）
		slog.Warn("batch contains duplicate dates", "ticker", ticker, "duplicates", report.DuplicateDates)
	}

	if err := iu.store.Replace(ctx, ticker, res.Bars); err != nil {
		return report, domain.Stage("store", err)
	}
	report.Stored = len(res.Bars)

	if report.Stored == 0 {
		report.Empty = true
		slog.Warn("ingest stored no rows", "ticker", ticker, "error", domain.ErrEmptyResult)
		return report, nil
	}
	slog.Info("ingest completed", "ticker", ticker, "stored", report.Stored, "dropped", res.Dropped())
	return report, nil
}

// countDuplicateDates は同じ日付を持つ2件目以降の行数を数えます。
func countDuplicateDates(bars []entity.Bar) int {
	seen := make(map[time.Time]struct{}, len(bars))
	dups := 0
	for _, b := range bars {
		if _, ok := seen[b.Date]; ok {
			dups++
			continue
		}
		seen[b.Date] = struct{}{}
	}
	return dups
}
