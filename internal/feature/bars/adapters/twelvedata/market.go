package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"market_analyzer/internal/feature/bars/adapters/twelvedata/dto"
	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/normalize"
	"market_analyzer/internal/feature/bars/usecase"
	"market_analyzer/internal/shared/ratelimiter"
)

// 指定期間にデータがない場合の API メッセージ
const noDataMessage = "No data is available"

// TwelveDataMarket はTwelve Data外部APIから日足を取得するMarketProvider実装です。
type TwelveDataMarket struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.Limiter
}

// TwelveDataMarketがMarketProviderを実装していることをコンパイル時に検証します。
var _ usecase.MarketProvider = (*TwelveDataMarket)(nil)

// NewTwelveDataMarket は指定された設定とHTTPクライアントでTwelveDataMarketの新しいインスタンスを生成します。
func NewTwelveDataMarket(cfg Config, client *http.Client) *TwelveDataMarket {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	return &TwelveDataMarket{
		cfg:     cfg,
		client:  client,
		limiter: ratelimiter.NewRateLimiter(cfg.RequestsPerMinute, time.Minute),
	}
}

func (t *TwelveDataMarket) Name() string { return "twelvedata" }

// FetchBars はTwelve Data APIから [start, end) の日足を取得し、
// 文字列セルのままの RawBatch として返します。数値の解釈は正規化処理に任せます。
func (t *TwelveDataMarket) FetchBars(ctx context.Context, ticker string, start, end time.Time) (normalize.RawBatch, error) {
	// 無料プランの呼び出し上限を超えないよう待機
	if err := t.limiter.Wait(ctx); err != nil {
		return normalize.RawBatch{}, err
	}

	q := url.Values{}
	// クエリパラメータを追加
	q.Set("symbol", ticker)
	q.Set("interval", "1day")
	q.Set("start_date", start.Format(time.DateOnly))
	q.Set("end_date", end.Format(time.DateOnly))
	q.Set("order", "ASC")
	q.Set("apikey", t.cfg.APIKey)

	// URLを生成
	u := fmt.Sprintf("%s/time_series?%s", strings.TrimRight(t.cfg.BaseURL, "/"), q.Encode())

	// リクエストオブジェクトを作成
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return normalize.RawBatch{}, err
	}

	// リクエストを実行
	res, err := t.client.Do(req)
	if err != nil {
		return normalize.RawBatch{}, &domain.ConnectionError{Target: "twelvedata", Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 500 {
		return normalize.RawBatch{}, &domain.ConnectionError{Target: "twelvedata", Err: fmt.Errorf("http %d", res.StatusCode)}
	}
	if res.StatusCode >= 400 {
		return normalize.RawBatch{}, fmt.Errorf("twelvedata http %d", res.StatusCode)
	}

	// JSONレスポンスをDTOにデコード
	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return normalize.RawBatch{}, fmt.Errorf("twelvedata decode: %w", err)
	}
	if body.Status == "error" {
		// 期間内にデータがないのは空の結果として扱う
		if strings.Contains(body.Message, noDataMessage) {
			slog.Warn("twelvedata returned no data", "ticker", ticker, "message", body.Message)
			return toBatch(nil, end), nil
		}
		return normalize.RawBatch{}, fmt.Errorf("twelvedata: %s", body.Message)
	}
	return toBatch(body.Values, end), nil
}

// toBatch は end 以降の日付の行を除いて RawBatch に変換します。
// 日付として読めない行は残し、正規化処理で行エラーとして報告させます。
func toBatch(values []dto.Value, end time.Time) normalize.RawBatch {
	batch := normalize.RawBatch{
		Columns: []normalize.Label{
			normalize.L("datetime"),
			normalize.L("open"),
			normalize.L("high"),
			normalize.L("low"),
			normalize.L("close"),
			normalize.L("volume"),
		},
		Rows: make([][]any, 0, len(values)),
	}
	endDay := end.Format(time.DateOnly)
	for _, v := range values {
		if len(v.Datetime) >= len(time.DateOnly) && v.Datetime[:len(time.DateOnly)] >= endDay {
			continue
		}
		batch.Rows = append(batch.Rows, []any{v.Datetime, v.Open, v.High, v.Low, v.Close, v.Volume})
	}
	return batch
}
