package server

import (
	"github.com/coolbeans/inelegis/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "inelegis"

// metrics is registered on a per-server registry so several servers (and
// tests) can coexist in one process.
type metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
}

func newMetrics(holder *session.Holder) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Consultations answered, by resolution status.",
		}, []string{"status"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		}, []string{"cache"}),
	}

	generation := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_generation",
		Help:      "Generation of the current table session.",
	}, func() float64 {
		if s := holder.Current(); s != nil {
			return float64(s.Generation)
		}
		return 0
	})
	records := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "records",
		Help:      "Legal records in the current table session.",
	}, func() float64 {
		if s := holder.Current(); s != nil {
			return float64(len(s.Records))
		}
		return 0
	})

	m.registry.MustRegister(
		m.requests,
		m.resolutions,
		m.cacheHits,
		generation,
		records,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
