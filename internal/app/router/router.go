package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	barshandler "market_analyzer/internal/feature/bars/transport/handler"
	"market_analyzer/internal/platform/http/handler"
)

func NewRouter(bars *barshandler.BarsHandler, checks map[string]handler.Check, metrics http.Handler) *gin.Engine {
	r := gin.Default()

	// 導通確認用
	r.GET("/healthz", handler.Health(checks))
	r.HEAD("/healthz", handler.Health(checks))
	// Prometheus スクレイプ用
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	// 読み取り専用のルート（認証なし）
	r.GET("/bars/:ticker", bars.GetBars)
	r.GET("/sma/:ticker", bars.GetSMA)
	r.GET("/chart/:ticker", bars.GetChart)

	return r
}
