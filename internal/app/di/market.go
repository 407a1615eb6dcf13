// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"

	"market_analyzer/internal/app/config"
	"market_analyzer/internal/feature/bars/adapters/twelvedata"
	"market_analyzer/internal/feature/bars/adapters/yahoo"
	"market_analyzer/internal/feature/bars/usecase"
	infrahttp "market_analyzer/internal/platform/http"
)

// NewMarket creates the configured market data provider with its HTTP client.
func NewMarket(cfg config.ProviderConfig) (usecase.MarketProvider, error) {
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	switch cfg.Name {
	case "", "yahoo":
		return yahoo.NewYahooMarket(yahoo.Config{
			BaseURL:   cfg.BaseURL,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
		}, httpClient), nil
	case "twelvedata":
		return twelvedata.NewTwelveDataMarket(twelvedata.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RateLimit,
		}, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
