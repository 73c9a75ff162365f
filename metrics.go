package prismblog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "prismblog"

// Metrics holds the Prometheus collectors of one App.
type Metrics struct {
	Regenerations *prometheus.CounterVec
	LoadMore      *prometheus.CounterVec
	LoadMoreTime  prometheus.Histogram
}

// NewMetrics registers the App collectors on reg. activeViews reports the
// number of live pagination sessions.
func NewMetrics(reg prometheus.Registerer, activeViews func() float64) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		Regenerations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "regenerations_total",
			Help:      "Page regenerations by page kind and result.",
		}, []string{"kind", "result"}),
		LoadMore: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "load_more_total",
			Help:      "Load-more requests by result.",
		}, []string{"result"}),
		LoadMoreTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "load_more_duration_seconds",
			Help:      "Time spent dereferencing continuation references.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if activeViews != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_views",
			Help:      "Page views holding a live pagination session.",
		}, activeViews)
	}
	return m
}
