package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInstrument_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/"+id, nil))
	}

	require.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/user/{id}", "418")))
	require.Equal(t, 1, testutil.CollectAndCount(m.requests))
	require.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestInstrument_Unmatched(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	h := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/raw", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unmatched", "200")))
}

func TestAuthEvent_And_RateLimited(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.AuthEvent("login", ResultSuccess)
	m.AuthEvent("login", ResultFailure)
	m.AuthEvent("login", ResultFailure)
	m.RateLimited("/login/token")

	expected := `
# HELP auth_events_total Authentication events by kind and result.
# TYPE auth_events_total counter
auth_events_total{event="login",result="failure"} 2
auth_events_total{event="login",result="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "auth_events_total"))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("/login/token")))
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics

	m.AuthEvent("login", ResultSuccess)
	m.RateLimited("/login/token")

	h := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.AuthEvent("refresh", ResultError)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `auth_events_total{event="refresh",result="error"} 1`)
}
