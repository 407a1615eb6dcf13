package di

import (
	"context"

	"market_analyzer/internal/app/config"
	"market_analyzer/internal/feature/bars/usecase"
	"market_analyzer/internal/platform/metrics"
)

// Ingest wires the ingest use case and the metrics it reports to.
type Ingest struct {
	Usecase  *usecase.IngestUsecase
	Recorder *metrics.Recorder
	Store    *Store
}

// NewIngest opens the store and the provider and builds the ingest use case.
// The caller must Close the returned Store.
func NewIngest(ctx context.Context, cfg *config.Config) (*Ingest, error) {
	market, err := NewMarket(cfg.Provider)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	recorder := metrics.NewRecorder()
	return &Ingest{
		Usecase:  usecase.NewIngestUsecase(market, store.Series, nil, recorder),
		Recorder: recorder,
		Store:    store,
	}, nil
}

// NewAnalyze builds the analyze use case over an opened store.
func NewAnalyze(store *Store) *usecase.AnalyzeUsecase {
	return usecase.NewAnalyzeUsecase(store.Series, store.Pushdown)
}
