// Package http provides the outbound HTTP client used by market data providers.
package http

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// NewHTTPClient は外部API呼び出し用に設定されたHTTPクライアントを作成します。
//
// 設定:
//   - Proxy: 環境変数（HTTP_PROXYなど）が設定されている場合に使用
//   - Dialer.Timeout: TCP接続タイムアウト（デフォルトより短い）
//   - MaxIdleConns: 最大アイドル接続数
//   - TLSHandshakeTimeout: HTTPSハンドシェイクの最大時間
//   - Client.Timeout: リクエスト全体のタイムアウト（呼び出し元から渡される）
//
// すべてのリクエストは所要時間とステータスをデバッグログに出力します（apikey はマスク）。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: &loggingTransport{next: t}}
}

type loggingTransport struct {
	next http.RoundTripper
}

func (l *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	res, err := l.next.RoundTrip(req)
	attrs := []any{"method", req.Method, "url", redact(req.URL), "elapsed", time.Since(start)}
	if err != nil {
		slog.Debug("outbound request failed", append(attrs, "error", err)...)
		return nil, err
	}
	slog.Debug("outbound request", append(attrs, "status", res.StatusCode)...)
	return res, nil
}

// redact masks credentials carried in the query string.
func redact(u *url.URL) string {
	q := u.Query()
	if q.Get("apikey") == "" {
		return u.String()
	}
	q.Set("apikey", "***")
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
