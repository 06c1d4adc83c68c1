package quiz

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts generation outcomes and cache effectiveness.
type Metrics struct {
	generations  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thinkb",
			Subsystem: "quiz",
			Name:      "generation_total",
			Help:      "Provider attempts by outcome (success, failed, canceled).",
		}, []string{"provider", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thinkb",
			Subsystem: "quiz",
			Name:      "cache_lookups_total",
			Help:      "Response cache reads by result (hit, miss, error).",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.generations, m.cacheLookups)
	}
	return m
}

func (m *Metrics) observeAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) observeLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
