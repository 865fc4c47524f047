package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/labelhive-api/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewManager(metrics.WithRegistry(reg), metrics.WithNamespace("mw"))

	r := chi.NewRouter()
	r.Use(RequestMetrics(m))
	r.Get("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/api/batches/{id}/claim", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	for _, path := range []string{"/api/jobs/a", "/api/jobs/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/batches/c/claim", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "mw_api_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			values[labels["route"]+" "+labels["method"]+" "+labels["status_code"]] = metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, 2.0, values["/api/jobs/{id} GET 200"], "path parameters collapse into the route pattern")
	assert.Equal(t, 1.0, values["/api/batches/{id}/claim POST 409"])
	assert.Equal(t, 1.0, values["unmatched GET 404"])

	count, err := testutil.GatherAndCount(reg, "mw_api_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRequestMetricsNilManager(t *testing.T) {
	h := RequestMetrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() { h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusOK, rec.Code)
}
