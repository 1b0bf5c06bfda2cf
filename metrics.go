package tenantschema

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for sessions and query translation.
// A nil *Metrics records nothing.
type Metrics struct {
	sessions     *prometheus.CounterVec
	translations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, if reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenantschema",
				Name:      "sessions_created_total",
				Help:      "Sessions created, by kind (core or tenant)",
			},
			[]string{"kind"},
		),
		translations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenantschema",
				Name:      "translations_total",
				Help:      "Schema translations, by result (hit, miss or error)",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.translations)
	}
	return m
}

func (m *Metrics) sessionCreated(kind string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(kind).Inc()
}

func (m *Metrics) translation(result string) {
	if m == nil {
		return
	}
	m.translations.WithLabelValues(result).Inc()
}
