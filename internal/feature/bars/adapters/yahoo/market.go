package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange timezones on hosts without zoneinfo

	"market_analyzer/internal/feature/bars/adapters/yahoo/dto"
	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/normalize"
	"market_analyzer/internal/feature/bars/usecase"
)

const defaultUserAgent = "Mozilla/5.0"

// YahooMarket は Yahoo Finance の chart API から日足を取得する MarketProvider 実装です。
type YahooMarket struct {
	cfg    Config
	client *http.Client
}

// YahooMarketがMarketProviderを実装していることをコンパイル時に検証します。
var _ usecase.MarketProvider = (*YahooMarket)(nil)

// NewYahooMarket は指定された設定とHTTPクライアントで YahooMarket を生成します。
func NewYahooMarket(cfg Config, client *http.Client) *YahooMarket {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &YahooMarket{cfg: cfg, client: client}
}

func (y *YahooMarket) Name() string { return "yahoo" }

// FetchBars は [start, end) の日足を取得します。
// カラムは (Date), (Open, TICKER), ... の多段ラベルで、欠損値は nil のまま返します。
func (y *YahooMarket) FetchBars(ctx context.Context, ticker string, start, end time.Time) (normalize.RawBatch, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", strings.TrimRight(y.cfg.BaseURL, "/"), url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return normalize.RawBatch{}, err
	}
	req.Header.Set("User-Agent", y.cfg.UserAgent)

	res, err := y.client.Do(req)
	if err != nil {
		return normalize.RawBatch{}, &domain.ConnectionError{Target: "yahoo", Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	var body dto.ChartResponse
	decodeErr := json.NewDecoder(res.Body).Decode(&body)

	// 存在しない銘柄や期間外は 404 と error オブジェクトで返る
	if body.Chart.Error != nil {
		if body.Chart.Error.Code == "Not Found" && decodeErr == nil {
			slog.Warn("yahoo returned no data", "ticker", ticker, "description", body.Chart.Error.Description)
			return emptyBatch(ticker), nil
		}
		return normalize.RawBatch{}, fmt.Errorf("yahoo: %s: %s", body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if res.StatusCode >= 500 {
		return normalize.RawBatch{}, &domain.ConnectionError{Target: "yahoo", Err: fmt.Errorf("http %d", res.StatusCode)}
	}
	if res.StatusCode >= 400 {
		return normalize.RawBatch{}, fmt.Errorf("yahoo http %d", res.StatusCode)
	}
	if decodeErr != nil {
		return normalize.RawBatch{}, fmt.Errorf("yahoo decode: %w", decodeErr)
	}
	if len(body.Chart.Result) == 0 {
		return emptyBatch(ticker), nil
	}
	return toBatch(ticker, body.Chart.Result[0], end)
}

func columns(ticker string) []normalize.Label {
	return []normalize.Label{
		normalize.L("Date"),
		normalize.L("Open", ticker),
		normalize.L("High", ticker),
		normalize.L("Low", ticker),
		normalize.L("Close", ticker),
		normalize.L("Adj Close", ticker),
		normalize.L("Volume", ticker),
	}
}

func emptyBatch(ticker string) normalize.RawBatch {
	return normalize.RawBatch{Columns: columns(ticker)}
}

var errShortSeries = errors.New("indicator series shorter than timestamps")

// toBatch は chart の結果を取引所のタイムゾーンの日時付きの行に変換します。
// end 以降の日付の行は除きます。
func toBatch(ticker string, r dto.ChartResult, end time.Time) (normalize.RawBatch, error) {
	batch := emptyBatch(ticker)
	if len(r.Timestamp) == 0 || len(r.Indicators.Quote) == 0 {
		return batch, nil
	}
	quote := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	n := len(r.Timestamp)
	if len(quote.Close) < n {
		return normalize.RawBatch{}, fmt.Errorf("yahoo %s: %w", ticker, errShortSeries)
	}

	loc := exchangeLocation(r)
	endDate := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	batch.Rows = make([][]any, 0, n)
	for i, ts := range r.Timestamp {
		t := time.Unix(ts, 0).In(loc)
		if !time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Before(endDate) {
			continue
		}
		batch.Rows = append(batch.Rows, []any{
			t,
			floatAt(quote.Open, i),
			floatAt(quote.High, i),
			floatAt(quote.Low, i),
			floatAt(quote.Close, i),
			floatAt(adj, i),
			intAt(quote.Volume, i),
		})
	}
	return batch, nil
}

func exchangeLocation(r dto.ChartResult) *time.Location {
	if name := r.Meta.ExchangeTimezoneName; name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if r.Meta.GMTOffset != 0 {
		return time.FixedZone("exchange", r.Meta.GMTOffset)
	}
	return time.UTC
}

func floatAt(s []*float64, i int) any {
	if i >= len(s) || s[i] == nil {
		return nil
	}
	return *s[i]
}

func intAt(s []*int64, i int) any {
	if i >= len(s) || s[i] == nil {
		return nil
	}
	return *s[i]
}
