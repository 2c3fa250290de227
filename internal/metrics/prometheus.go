package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitewright"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	runDuration  prom.Histogram
	fileDuration prom.Histogram
	fileResults  *prom.CounterVec
	commands     *prom.CounterVec
	partials     prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg. A nil
// reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of view pipeline runs",
			Buckets:   prom.DefBuckets,
		})
		pr.fileDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_file_duration_seconds",
			Help:      "Time spent running processors on one view",
			Buckets:   prom.ExponentialBuckets(0.0005, 2, 14),
		})
		pr.fileResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_files_total",
			Help:      "Files leaving the pipeline by stage and result",
		}, []string{"stage", "result"})
		pr.commands = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed by the host by kind and result",
		}, []string{"kind", "result"})
		pr.partials = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "partials_cached",
			Help:      "Partials held by the partial cache after the last load",
		})
		reg.MustRegister(pr.runDuration, pr.fileDuration, pr.fileResults, pr.commands, pr.partials)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveFileDuration(d time.Duration) {
	if p == nil || p.fileDuration == nil {
		return
	}
	p.fileDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileResult(stage string, result ResultLabel) {
	if p == nil || p.fileResults == nil {
		return
	}
	p.fileResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncCommand(kind string, success bool) {
	if p == nil || p.commands == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.commands.WithLabelValues(kind, res).Inc()
}

func (p *PrometheusRecorder) SetPartials(n int) {
	if p == nil || p.partials == nil {
		return
	}
	p.partials.Set(float64(n))
}

// Handler serves the metrics gathered by reg.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
