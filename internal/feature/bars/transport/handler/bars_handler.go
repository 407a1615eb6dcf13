// Package handler はbarsフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/domain/entity"
	"market_analyzer/internal/feature/bars/presentation"
	"market_analyzer/internal/feature/bars/transport/http/dto"
	"market_analyzer/internal/feature/bars/usecase"
)

// SeriesUsecase は日足の参照と移動平均分析のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type SeriesUsecase interface {
	Bars(ctx context.Context, ticker string) ([]entity.Bar, error)
	Analyze(ctx context.Context, ticker string, window int) (usecase.Analysis, error)
	Render(ctx context.Context, ticker string, window int, r usecase.Renderer, w io.Writer) (usecase.Analysis, error)
}

// BarsHandler は日足データのHTTPリクエストを処理します。
type BarsHandler struct {
	uc            SeriesUsecase
	defaultWindow int
}

// NewBarsHandler は指定されたusecaseでBarsHandlerの新しいインスタンスを生成します。
func NewBarsHandler(uc SeriesUsecase, defaultWindow int) *BarsHandler {
	return &BarsHandler{uc: uc, defaultWindow: defaultWindow}
}

// GetBars は保存済みの日足を日付順にJSONで返します。
//
// エンドポイント例:
// GET /bars/:ticker
func (h *BarsHandler) GetBars(c *gin.Context) {
	bars, err := h.uc.Bars(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]dto.BarResponse, 0, len(bars))
	for _, b := range bars {
		out = append(out, toBarResponse(b))
	}
	c.JSON(http.StatusOK, out)
}

// GetSMA は SMA が確定した行をJSONで返します。
//
// エンドポイント例:
// GET /sma/:ticker?window=50
func (h *BarsHandler) GetSMA(c *gin.Context) {
	a, err := h.uc.Analyze(c.Request.Context(), c.Param("ticker"), h.window(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	out := dto.SMAResponse{Ticker: a.Ticker, Window: a.Window, Total: a.Total, Bars: make([]dto.BarResponse, 0, len(a.Bars))}
	for _, b := range a.Bars {
		r := toBarResponse(b.Bar)
		r.SMA = b.SMA.Ptr()
		out.Bars = append(out.Bars, r)
	}
	c.JSON(http.StatusOK, out)
}

// GetChart はローソク足と移動平均のチャートを返します。format=xlsx でワークブックを返します。
//
// エンドポイント例:
// GET /chart/:ticker?window=50&format=html
func (h *BarsHandler) GetChart(c *gin.Context) {
	r, err := presentation.NewRenderer(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	// 途中まで書き込んだレスポンスを返さないよう、バッファに描画する
	var buf bytes.Buffer
	a, err := h.uc.Render(c.Request.Context(), c.Param("ticker"), h.window(c), r, &buf)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	if r.Ext() == "xlsx" {
		name := presentation.ArtifactPath("", a.Ticker, r.Ext())
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// window はクエリの window を返します。未指定・不正な値の場合は既定値を使用します。
func (h *BarsHandler) window(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("window"))
	if err != nil || n <= 0 {
		return h.defaultWindow
	}
	return n
}

func (h *BarsHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrConnection):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidWindow):
		status = http.StatusBadRequest
	}
	slog.Error("request failed", "path", c.FullPath(), "ticker", c.Param("ticker"), "status", status, "error", err)
	c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}

func toBarResponse(b entity.Bar) dto.BarResponse {
	return dto.BarResponse{
		Date:   b.Date.UTC().Format(time.DateOnly),
		Open:   b.Open.Ptr(),
		High:   b.High.Ptr(),
		Low:    b.Low.Ptr(),
		Close:  b.Close,
		Volume: b.Volume.Ptr(),
	}
}
