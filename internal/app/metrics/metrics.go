package metrics

import (
	"avatarcast/pkg/coqui"
	appmetrics "avatarcast/pkg/metrics"
	"avatarcast/pkg/rembg"
	"avatarcast/pkg/sadtalker"
	"avatarcast/pkg/ws"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	StepSeconds  *prometheus.HistogramVec
	RunsFinished *prometheus.CounterVec
	RunsPruned   prometheus.Counter
}

var Pipeline = &Metrics{
	StepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pipeline",
		Subsystem: "step",
		Name:      "seconds",
		Buckets:   appmetrics.RequestSecondsBuckets,
	}, []string{"step"}),
	RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Subsystem: "runs",
		Name:      "finished_total",
	}, []string{"status"}),
	RunsPruned: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pipeline",
		Subsystem: "runs",
		Name:      "pruned_total",
	}),
}

// RegisterMetrics registers the pipeline metrics together with the metrics of every client it drives.
func RegisterMetrics(reg prometheus.Registerer) {
	ws.RegisterMetrics(reg)
	coqui.RegisterMetrics(reg)
	rembg.RegisterMetrics(reg)
	sadtalker.RegisterMetrics(reg)

	reg.MustRegister(Pipeline.StepSeconds)
	reg.MustRegister(Pipeline.RunsFinished)
	reg.MustRegister(Pipeline.RunsPruned)
}
