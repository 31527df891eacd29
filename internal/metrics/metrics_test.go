package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/matka-backoffice/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersAreExposed(t *testing.T) {
	m := metrics.New()
	m.APIRequest("GET", 200)
	m.APIRequest("GET", 401)
	m.APIRequest("POST", 0)
	m.AuthLogout()
	m.GuardState("Authenticated", []string{"Anonymous", "Authenticated"})

	count, err := testutil.GatherAndCount(m.Registry(), "matka_api_requests_total")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `matka_session_guard_state{state="Authenticated"} 1`)
	require.Contains(t, rec.Body.String(), "matka_auth_failure_logouts_total 1")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.APIRequest("GET", 200)
	m.CacheFetch("/api/users")
	m.Eviction()
	require.Nil(t, m.Registry())
}
