package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/seaice-drift/internal/adapter/httpadapter"
	"github.com/couchcryptid/seaice-drift/internal/observability"
	"github.com/couchcryptid/seaice-drift/internal/pipeline"
)

type mockRun struct {
	err      error
	progress pipeline.Progress
}

func (m *mockRun) CheckReadiness(_ context.Context) error { return m.err }
func (m *mockRun) Progress() pipeline.Progress            { return m.progress }

func newTestServer(run *mockRun) *httpadapter.Server {
	metrics := observability.NewMetrics()
	metrics.DatasetsProcessed.Inc()
	return httpadapter.NewServer(":0", run, metrics.Handler(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(&mockRun{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"reference done", nil, http.StatusOK},
		{"reference pending", errors.New("reference dataset not processed yet"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestServer(&mockRun{err: tt.err}), "/readyz")
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestProgressEndpoint(t *testing.T) {
	run := &mockRun{progress: pipeline.Progress{Dataset: "reference", Stage: "reduced", Total: 3, Completed: 0}}
	rec := get(newTestServer(run), "/progress")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got pipeline.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.progress, got)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(&mockRun{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seaice_drift_datasets_processed_total 1")
}
