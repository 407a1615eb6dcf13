package usecase

import (
	"context"
	"errors"
	"io"
	"time"

	"market_analyzer/internal/feature/bars/domain/entity"
	"market_analyzer/internal/feature/bars/normalize"
	"market_analyzer/internal/feature/bars/presentation"
)

var (
	ErrMarketAPI = errors.New("market API error")
	ErrDB        = errors.New("database error")
)

// mockMarketProvider is a mock implementation of the MarketProvider interface.
type mockMarketProvider struct {
	FetchBarsFunc  func(ctx context.Context, ticker string, start, end time.Time) (normalize.RawBatch, error)
	FetchBarsCalls int
}

func (m *mockMarketProvider) Name() string { return "mock" }

func (m *mockMarketProvider) FetchBars(ctx context.Context, ticker string, start, end time.Time) (normalize.RawBatch, error) {
	m.FetchBarsCalls++
	if m.FetchBarsFunc != nil {
		return m.FetchBarsFunc(ctx, ticker, start, end)
	}
	return normalize.RawBatch{}, errors.New("FetchBarsFunc is not implemented")
}

// memoryStore is an in-memory SeriesStore with full-replace semantics.
type memoryStore struct {
	EnsureSeriesErr error
	ReplaceErr      error
	ReadErr         error
	ReplaceCalls    int
	rows            map[string][]entity.Bar
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string][]entity.Bar)}
}

func (m *memoryStore) EnsureSeries(ctx context.Context) error { return m.EnsureSeriesErr }

func (m *memoryStore) Replace(ctx context.Context, ticker string, bars []entity.Bar) error {
	m.ReplaceCalls++
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.rows[ticker] = append([]entity.Bar(nil), bars...)
	return nil
}

func (m *memoryStore) ReadOrdered(ctx context.Context, ticker string) ([]entity.Bar, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]entity.Bar(nil), m.rows[ticker]...), nil
}

// mockObserver records the last observation.
type mockObserver struct {
	Calls                               int
	Fetched, Stored, NullClose, RowErrs int
	Err                                 error
}

func (m *mockObserver) ObserveIngest(ticker string, fetched, stored, nullClose, rowErrors int, err error) {
	m.Calls++
	m.Fetched, m.Stored, m.NullClose, m.RowErrs, m.Err = fetched, stored, nullClose, rowErrors, err
}

// mockAggregator is a mock implementation of the WindowAggregator interface.
type mockAggregator struct {
	AggregateSMAFunc  func(ctx context.Context, ticker string, window int) ([]entity.AggregatedBar, error)
	AggregateSMACalls int
	Count             int
	CountErr          error
}

func (m *mockAggregator) AggregateSMA(ctx context.Context, ticker string, window int) ([]entity.AggregatedBar, error) {
	m.AggregateSMACalls++
	if m.AggregateSMAFunc != nil {
		return m.AggregateSMAFunc(ctx, ticker, window)
	}
	return nil, errors.New("AggregateSMAFunc is not implemented")
}

func (m *mockAggregator) CountBars(ctx context.Context, ticker string) (int, error) {
	return m.Count, m.CountErr
}

// mockRenderer captures the rendered series.
type mockRenderer struct {
	Err    error
	Series presentation.Series
	Calls  int
}

func (m *mockRenderer) Render(w io.Writer, s presentation.Series) error {
	m.Calls++
	m.Series = s
	if m.Err != nil {
		return m.Err
	}
	_, err := io.WriteString(w, s.Ticker)
	return err
}
