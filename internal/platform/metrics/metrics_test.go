package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_analyzer/internal/feature/bars/domain"
)

func TestRecorder_ObserveIngest(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveIngest("MSFT", 4, 3, 1, 0, nil)
	r.ObserveIngest("MSFT", 4, 3, 1, 0, nil)
	r.ObserveIngest("MSFT", 0, 0, 0, 0, domain.Stage("fetch", &domain.ConnectionError{Target: "yahoo", Err: errors.New("refused")}))

	assert.Equal(t, 8.0, testutil.ToFloat64(r.fetched.WithLabelValues("MSFT")))
	assert.Equal(t, 6.0, testutil.ToFloat64(r.stored.WithLabelValues("MSFT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.dropped.WithLabelValues("MSFT", "null_close")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.runs.WithLabelValues("MSFT", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("MSFT", "connection_error")))
	assert.Positive(t, testutil.ToFloat64(r.lastSuccess.WithLabelValues("MSFT")))
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stored int
		err    error
		want   string
	}{
		{name: "success", stored: 3, want: "success"},
		{name: "empty", stored: 0, want: "empty"},
		{name: "connection", err: &domain.ConnectionError{Target: "mongo", Err: errors.New("x")}, want: "connection_error"},
		{name: "stage", err: domain.Stage("normalize", domain.ErrSchemaResolution), want: "normalize_error"},
		{name: "other", err: errors.New("boom"), want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Outcome(tt.stored, tt.err))
		})
	}
}

func TestRecorder_Handler(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveIngest("MSFT", 1, 1, 0, 0, nil)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `market_analyzer_ingest_rows_stored_total{ticker="MSFT"} 1`)
}

func TestRecorder_Push(t *testing.T) {
	t.Parallel()

	var gotPath string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	r := NewRecorder()
	r.ObserveIngest("MSFT", 1, 1, 0, 0, nil)
	require.NoError(t, r.Push(context.Background(), gateway.URL, "market_analyzer_ingest"))
	assert.True(t, strings.HasPrefix(gotPath, "/metrics/job/market_analyzer_ingest"), gotPath)
}

func TestRecorder_Push_Error(t *testing.T) {
	t.Parallel()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	err := NewRecorder().Push(context.Background(), gateway.URL, "job")
	assert.Error(t, err)
}
