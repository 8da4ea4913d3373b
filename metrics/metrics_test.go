package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer(t *testing.T) {
	ms, err := New("metadata_gateway", "127.0.0.1:0")
	require.NoError(t, err)

	ms.Metrics.ObserveAuth("ok")
	ms.Metrics.ObserveAuth("invalid signature")
	ms.Metrics.ObserveMerge("Software", "ok", 3)
	ms.Metrics.ObserveQuery("Protocols", "ok")

	router := chi.NewRouter()
	router.Use(ms.Metrics.Middleware)
	router.Get("/metadata/{table}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metadata/software", nil))

	rr := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `metadata_gateway_auth_total{result="ok"} 1`)
	assert.Contains(t, text, `metadata_gateway_auth_total{result="invalid signature"} 1`)
	assert.Contains(t, text, `metadata_gateway_records_changed_total{table="Software"} 3`)
	assert.Contains(t, text, `metadata_gateway_queries_total{status="ok",table="Protocols"} 1`)
	assert.Contains(t, text, `route="/metadata/{table}"`)
	assert.Contains(t, text, `code="418"`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveAuth("ok")
	m.ObserveMerge("Software", "ok", 1)
	m.ObserveQuery("Software", "ok")

	called := false
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
