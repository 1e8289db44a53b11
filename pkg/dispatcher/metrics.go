package dispatcher

import "github.com/prometheus/client_golang/prometheus"

// Metrics records per-case dispatch outcomes for scraping over an (opt-in)
// HTTP endpoint. A nil *Metrics is valid and simply records nothing, so
// wiring one in is always optional.
type Metrics struct {
	casesTotal   *prometheus.CounterVec
	caseDuration *prometheus.HistogramVec
}

// NewMetrics builds a Metrics recorder and registers its collectors with
// reg. A nil reg registers against prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		casesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fz_dispatcher_cases_total",
			Help: "Cases dispatched, partitioned by final status.",
		}, []string{"status"}),
		caseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fz_dispatcher_case_duration_seconds",
			Help:    "Per-case dispatch duration in seconds, attempt one through the final status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
	}
	reg.MustRegister(m.casesTotal, m.caseDuration)
	return m
}

func (m *Metrics) observe(r CaseResult) {
	if m == nil {
		return
	}
	status := string(r.Status)
	m.casesTotal.WithLabelValues(status).Inc()
	m.caseDuration.WithLabelValues(status).Observe(r.DurationS)
}
