package handler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_analyzer/internal/feature/bars/domain"
	"market_analyzer/internal/feature/bars/domain/entity"
	"market_analyzer/internal/feature/bars/presentation"
	"market_analyzer/internal/feature/bars/transport/handler"
	"market_analyzer/internal/feature/bars/usecase"
)

// mockSeriesUsecase はSeriesUsecaseインターフェースのモック実装です。
type mockSeriesUsecase struct {
	BarsFunc    func(ctx context.Context, ticker string) ([]entity.Bar, error)
	AnalyzeFunc func(ctx context.Context, ticker string, window int) (usecase.Analysis, error)
	RenderFunc  func(ctx context.Context, ticker string, window int, r usecase.Renderer, w io.Writer) (usecase.Analysis, error)
}

func (m *mockSeriesUsecase) Bars(ctx context.Context, ticker string) ([]entity.Bar, error) {
	return m.BarsFunc(ctx, ticker)
}

func (m *mockSeriesUsecase) Analyze(ctx context.Context, ticker string, window int) (usecase.Analysis, error) {
	return m.AnalyzeFunc(ctx, ticker, window)
}

func (m *mockSeriesUsecase) Render(ctx context.Context, ticker string, window int, r usecase.Renderer, w io.Writer) (usecase.Analysis, error) {
	return m.RenderFunc(ctx, ticker, window, r, w)
}

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func serve(t *testing.T, uc *mockSeriesUsecase, url string) *httptest.ResponseRecorder {
	t.Helper()
	h := handler.NewBarsHandler(uc, 50)

	router := gin.New()
	router.GET("/bars/:ticker", h.GetBars)
	router.GET("/sma/:ticker", h.GetSMA)
	router.GET("/chart/:ticker", h.GetChart)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, url, io.NopCloser(bytes.NewReader(nil)))
	router.ServeHTTP(w, req)
	return w
}

// TestBarsHandler_GetBars は日足一覧のレスポンスをテストします。
func TestBarsHandler_GetBars(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		mockBars       func(ctx context.Context, ticker string) ([]entity.Bar, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success: nullable fields are rendered as null",
			mockBars: func(ctx context.Context, ticker string) ([]entity.Bar, error) {
				assert.Equal(t, "msft", ticker)
				return []entity.Bar{
					{Ticker: "MSFT", Date: day, Open: null.FloatFrom(10), High: null.FloatFrom(12), Low: null.FloatFrom(9), Close: 11, Volume: null.IntFrom(100)},
					{Ticker: "MSFT", Date: day.AddDate(0, 0, 1), Close: 12},
				}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody: `[{"date":"2024-01-02","open":10,"high":12,"low":9,"close":11,"volume":100},
				{"date":"2024-01-03","open":null,"high":null,"low":null,"close":12,"volume":null}]`,
		},
		{
			name: "success: empty partition",
			mockBars: func(ctx context.Context, ticker string) ([]entity.Bar, error) {
				return nil, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[]`,
		},
		{
			name: "error: store unreachable",
			mockBars: func(ctx context.Context, ticker string) ([]entity.Bar, error) {
				return nil, domain.Stage("read", &domain.ConnectionError{Target: "mongo", Err: errors.New("refused")})
			},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name: "error: unexpected failure",
			mockBars: func(ctx context.Context, ticker string) ([]entity.Bar, error) {
				return nil, errors.New("boom")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"boom"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, &mockSeriesUsecase{BarsFunc: tt.mockBars}, "/bars/msft")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

// TestBarsHandler_GetSMA は移動平均のレスポンスとwindowパラメータの扱いをテストします。
func TestBarsHandler_GetSMA(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		url            string
		wantWindow     int
		err            error
		expectedStatus int
	}{
		{name: "success: window specified", url: "/sma/MSFT?window=2", wantWindow: 2, expectedStatus: http.StatusOK},
		{name: "edge case: missing window uses default", url: "/sma/MSFT", wantWindow: 50, expectedStatus: http.StatusOK},
		{name: "edge case: invalid window uses default", url: "/sma/MSFT?window=abc", wantWindow: 50, expectedStatus: http.StatusOK},
		{name: "edge case: negative window uses default", url: "/sma/MSFT?window=-3", wantWindow: 50, expectedStatus: http.StatusOK},
		{name: "error: invalid window from usecase", url: "/sma/MSFT?window=2", wantWindow: 2, err: domain.Stage("aggregate", domain.ErrInvalidWindow), expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockSeriesUsecase{
				AnalyzeFunc: func(ctx context.Context, ticker string, window int) (usecase.Analysis, error) {
					assert.Equal(t, tt.wantWindow, window)
					if tt.err != nil {
						return usecase.Analysis{}, tt.err
					}
					return usecase.Analysis{
						Ticker: "MSFT",
						Window: window,
						Total:  3,
						Bars: []entity.AggregatedBar{
							{Bar: entity.Bar{Ticker: "MSFT", Date: day, Close: 11}, SMA: null.FloatFrom(10.5)},
						},
					}, nil
				},
			}

			w := serve(t, uc, tt.url)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.err == nil {
				assert.Contains(t, w.Body.String(), `"sma":10.5`)
				assert.Contains(t, w.Body.String(), `"total":3`)
			}
		})
	}
}

// TestBarsHandler_GetChart はチャートとワークブックの返却をテストします。
func TestBarsHandler_GetChart(t *testing.T) {
	gin.SetMode(gin.TestMode)

	render := func(ctx context.Context, ticker string, window int, r usecase.Renderer, w io.Writer) (usecase.Analysis, error) {
		bars := []entity.AggregatedBar{
			{Bar: entity.Bar{Ticker: "MSFT", Date: day, Close: 11}, SMA: null.FloatFrom(10.5)},
		}
		if err := r.Render(w, presentation.NewSeries("MSFT", window, bars)); err != nil {
			return usecase.Analysis{}, err
		}
		return usecase.Analysis{Ticker: "MSFT", Window: window, Total: 1, Bars: bars}, nil
	}

	t.Run("success: html chart", func(t *testing.T) {
		w := serve(t, &mockSeriesUsecase{RenderFunc: render}, "/chart/MSFT?window=2")

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
		assert.Contains(t, w.Body.String(), "2-Day SMA")
	})

	t.Run("success: xlsx workbook", func(t *testing.T) {
		w := serve(t, &mockSeriesUsecase{RenderFunc: render}, "/chart/MSFT?format=XLSX")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "MSFT_analyzer_chart.xlsx")
		// xlsx はzipアーカイブ
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	})

	t.Run("error: unsupported format", func(t *testing.T) {
		uc := &mockSeriesUsecase{RenderFunc: func(context.Context, string, int, usecase.Renderer, io.Writer) (usecase.Analysis, error) {
			t.Fatal("Render must not be called")
			return usecase.Analysis{}, nil
		}}
		w := serve(t, uc, "/chart/MSFT?format=png")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"unsupported format \"png\""}`, w.Body.String())
	})

	t.Run("error: render failure", func(t *testing.T) {
		uc := &mockSeriesUsecase{RenderFunc: func(context.Context, string, int, usecase.Renderer, io.Writer) (usecase.Analysis, error) {
			return usecase.Analysis{}, domain.Stage("render", errors.New("disk full"))
		}}
		w := serve(t, uc, "/chart/MSFT")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
