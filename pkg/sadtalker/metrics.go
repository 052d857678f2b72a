package sadtalker

import (
	appmetrics "avatarcast/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	QueryTime prometheus.Histogram
	Errors    *prometheus.CounterVec
}

var metrics = &Metrics{
	QueryTime: prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "sadtalker",
		Name:      "generation_seconds",
		Buckets:   appmetrics.RequestSecondsBuckets,
	}),
	Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "sadtalker",
		Name:      "errors_total",
	}, []string{"err_code"}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.QueryTime)
	reg.MustRegister(metrics.Errors)
}
