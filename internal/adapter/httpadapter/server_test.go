package httpadapter_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnohealth/facility-map/internal/adapter/httpadapter"
	"github.com/turnohealth/facility-map/internal/pipeline"
)

type mockStatus struct {
	status pipeline.Status
}

func (m *mockStatus) Status() pipeline.Status { return m.status }

func newTestServer(status pipeline.Status) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockStatus{status: status}, logger)
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(pipeline.Status{Stage: pipeline.StageIdle})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestStatuszReportsStage(t *testing.T) {
	srv := newTestServer(pipeline.Status{Stage: pipeline.StageGeocode})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "geocode", body["stage"])
	assert.NotContains(t, body, "last_report")
}

func TestStatuszIncludesLastReport(t *testing.T) {
	srv := newTestServer(pipeline.Status{
		Stage:      pipeline.StageDone,
		LastReport: &pipeline.Report{Total: 12, Geocoded: 3},
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)

	srv.ServeHTTP(rec, req)

	var body struct {
		Stage      string           `json:"stage"`
		LastReport *pipeline.Report `json:"last_report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.LastReport)
	assert.Equal(t, 12, body.LastReport.Total)
	assert.Equal(t, 3, body.LastReport.Geocoded)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(pipeline.Status{Stage: pipeline.StageIdle})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
