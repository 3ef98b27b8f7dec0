package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// bootstrapMetrics holds the Prometheus collectors for bootstrap runs. They
// register on the default registry the first time any is used.
type bootstrapMetrics struct {
	once sync.Once

	runs        *prometheus.CounterVec
	indexOps    *prometheus.CounterVec
	seeded      *prometheus.CounterVec
	runDuration prometheus.Histogram
}

var metrics bootstrapMetrics

func (m *bootstrapMetrics) init() {
	m.once.Do(func() {
		m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storeinit_bootstrap_runs_total",
			Help: "Bootstrap runs by final status",
		}, []string{"status"})
		m.indexOps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storeinit_index_operations_total",
			Help: "Index drop/create attempts by collection, index and outcome",
		}, []string{"collection", "index", "outcome"})
		m.seeded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storeinit_seeded_documents_total",
			Help: "Reference documents inserted by collection",
		}, []string{"collection"})
		m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storeinit_bootstrap_seconds",
			Help:    "Duration of a bootstrap run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		})

		prometheus.MustRegister(m.runs, m.indexOps, m.seeded, m.runDuration)
	})
}

func recordRun(status string, d time.Duration) {
	metrics.init()
	metrics.runs.WithLabelValues(status).Inc()
	metrics.runDuration.Observe(d.Seconds())
}

func recordIndexOp(collection, index, outcome string) {
	metrics.init()
	metrics.indexOps.WithLabelValues(collection, index, outcome).Inc()
}

func recordSeeded(collection string, n int) {
	metrics.init()
	metrics.seeded.WithLabelValues(collection).Add(float64(n))
}
