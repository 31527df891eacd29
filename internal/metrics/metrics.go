package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's collectors on a private registry. All methods are nil-safe so
// components can be built without metrics in tests.
type Metrics struct {
	registry      *prometheus.Registry
	apiRequests   *prometheus.CounterVec
	cacheFetches  *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	evictions     prometheus.Counter
	authLogouts   prometheus.Counter
	guardState    *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matka",
			Name:      "api_requests_total",
			Help:      "Backend API requests by method and status class.",
		}, []string{"method", "status"}),
		cacheFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matka",
			Name:      "cache_fetches_total",
			Help:      "Network fetches issued by the query cache, by endpoint.",
		}, []string{"endpoint"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matka",
			Name:      "cache_invalidations_total",
			Help:      "Tag invalidations applied to the query cache.",
		}, []string{"tag"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matka",
			Name:      "cache_evictions_total",
			Help:      "Cache entries evicted after their last subscriber left.",
		}),
		authLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matka",
			Name:      "auth_failure_logouts_total",
			Help:      "Forced logouts caused by an auth-failure response.",
		}),
		guardState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "matka",
			Name:      "session_guard_state",
			Help:      "1 for the session guard's current state, 0 otherwise.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(m.apiRequests, m.cacheFetches, m.invalidations, m.evictions, m.authLogouts, m.guardState)
	return m
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) APIRequest(method string, status int) {
	if m == nil {
		return
	}
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	m.apiRequests.WithLabelValues(method, class).Inc()
}

func (m *Metrics) CacheFetch(endpoint string) {
	if m == nil {
		return
	}
	m.cacheFetches.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) Invalidation(tag string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(tag).Inc()
}

func (m *Metrics) Eviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *Metrics) AuthLogout() {
	if m == nil {
		return
	}
	m.authLogouts.Inc()
}

// GuardState flips the gauge to the given state
func (m *Metrics) GuardState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.guardState.WithLabelValues(s).Set(v)
	}
}
