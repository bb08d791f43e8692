// Package metrics exposes Prometheus collectors for the event pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventpipe"

// Collector receives pipeline observations.
type Collector interface {
	EventGenerated(strategy string)
	EventPublished(strategy string)
	TransformCompleted(strategy string, duration time.Duration, err error)
	HookFailed(stage string)
	SubscriptionTerminated(state string)
}

var (
	_ Collector = (*PipelineCollector)(nil)
	_ Collector = NoopCollector{}
)

// PipelineCollector records pipeline activity on a Prometheus registerer.
type PipelineCollector struct {
	generated    *prometheus.CounterVec
	published    *prometheus.CounterVec
	transforms   *prometheus.HistogramVec
	transformErr *prometheus.CounterVec
	hookFailures *prometheus.CounterVec
	terminated   *prometheus.CounterVec
}

// NewPipelineCollector registers the pipeline metrics on reg.
//
// Passing a dedicated registry keeps several pipelines in one process (and
// tests) from colliding on the global default registerer.
func NewPipelineCollector(reg prometheus.Registerer) *PipelineCollector {
	factory := promauto.With(reg)

	return &PipelineCollector{
		generated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_generated_total",
			Help:      "count of events produced by the transform stage",
		}, []string{"strategy"}),

		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "count of events observed on the publish goroutine",
		}, []string{"strategy"}),

		transforms: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "time spent turning a tick into an event",
			Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"strategy"}),

		transformErr: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "count of failed transforms",
		}, []string{"strategy"}),

		hookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_failures_total",
			Help:      "count of observation hooks that panicked or failed",
		}, []string{"stage"}),

		terminated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_terminated_total",
			Help:      "count of subscriptions that reached a terminal state",
		}, []string{"state"}),
	}
}

func (c *PipelineCollector) EventGenerated(strategy string) {
	c.generated.WithLabelValues(strategy).Inc()
}

func (c *PipelineCollector) EventPublished(strategy string) {
	c.published.WithLabelValues(strategy).Inc()
}

func (c *PipelineCollector) TransformCompleted(strategy string, duration time.Duration, err error) {
	c.transforms.WithLabelValues(strategy).Observe(duration.Seconds())
	if err != nil {
		c.transformErr.WithLabelValues(strategy).Inc()
	}
}

func (c *PipelineCollector) HookFailed(stage string) {
	c.hookFailures.WithLabelValues(stage).Inc()
}

func (c *PipelineCollector) SubscriptionTerminated(state string) {
	c.terminated.WithLabelValues(state).Inc()
}

// NoopCollector discards all observations.
type NoopCollector struct{}

func (NoopCollector) EventGenerated(string)                            {}
func (NoopCollector) EventPublished(string)                            {}
func (NoopCollector) TransformCompleted(string, time.Duration, error) {}
func (NoopCollector) HookFailed(string)                                {}
func (NoopCollector) SubscriptionTerminated(string)                    {}
