// Package dto defines the JSON bodies of the bars HTTP endpoints.
package dto

// BarResponse は日足1件のレスポンスDTOです。
type BarResponse struct {
	Date   string   `json:"date"`          // 日付 (YYYY-MM-DD)
	Open   *float64 `json:"open"`          // 始値
	High   *float64 `json:"high"`          // 高値
	Low    *float64 `json:"low"`           // 安値
	Close  float64  `json:"close"`         // 終値
	Volume *int64   `json:"volume"`        // 出来高
	SMA    *float64 `json:"sma,omitempty"` // 単純移動平均
}

// SMAResponse は移動平均分析のレスポンスDTOです。
type SMAResponse struct {
	Ticker string        `json:"ticker"`
	Window int           `json:"window"`
	Total  int           `json:"total"` // 保存済みの行数
	Bars   []BarResponse `json:"bars"`  // SMA が確定した行
}

// ErrorResponse はエラー時のレスポンスDTOです。
type ErrorResponse struct {
	Error string `json:"error"`
}
