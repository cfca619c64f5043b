// Package metrics exposes Prometheus counters for the bot's pipelines.
package metrics

import (
	"context"
	"time"

	"github.com/alexanderramin/noise/internal/llm"
	"github.com/alexanderramin/noise/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// Collector holds all Prometheus metrics for the bot. Each collector owns its
// registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	MessagesRecorded   prometheus.Counter
	Triggers           *prometheus.CounterVec
	Matches            *prometheus.CounterVec
	NarrativeFallbacks prometheus.Counter
	Recommendations    *prometheus.CounterVec
	ExternalCalls      *prometheus.CounterVec
	ExternalDuration   *prometheus.HistogramVec
	TaskFailures       *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec
}

var _ llm.Observer = (*Collector)(nil)

var _ service.UseCaseObserver = (*Collector)(nil)

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		MessagesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_recorded_total",
			Help:      "Total number of member messages recorded",
		}),
		Triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Connection triggers that fired, by reason",
		}, []string{"reason"}),
		Matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Connection partners found, by matching tier",
		}, []string{"tier"}),
		NarrativeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_fallbacks_total",
			Help:      "Connection comments replaced by the fallback text",
		}),
		Recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_runs_total",
			Help:      "Recommendation runs, by outcome",
		}, []string{"outcome"}),
		ExternalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to embedding, generation and search backends",
		}, []string{"client", "outcome"}),
		ExternalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "External call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"client"}),
		TaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_failures_total",
			Help:      "Background tasks that ended with an error or panic",
		}, []string{"task"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		}, []string{"name"}),
	}
	c.registry.MustRegister(
		c.MessagesRecorded,
		c.Triggers,
		c.Matches,
		c.NarrativeFallbacks,
		c.Recommendations,
		c.ExternalCalls,
		c.ExternalDuration,
		c.TaskFailures,
		c.BreakerState,
	)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// OnCallComplete counts one LLM call.
func (c *Collector) OnCallComplete(event llm.LLMCallEvent) {
	client := "llm_" + string(event.Task)
	outcome := "ok"
	if !event.Success {
		outcome = event.ErrorCode
	}
	c.RecordExternal(client, outcome, time.Duration(event.LatencyMs)*time.Millisecond)
}

// RecordExternal counts one call to an external backend.
func (c *Collector) RecordExternal(client, outcome string, d time.Duration) {
	c.ExternalCalls.WithLabelValues(client, outcome).Inc()
	c.ExternalDuration.WithLabelValues(client).Observe(d.Seconds())
}

// ObserveUseCase maps service events onto the pipeline counters.
func (c *Collector) ObserveUseCase(_ context.Context, event service.UseCaseEvent) {
	switch event.Name {
	case service.UseCaseRecordMessage:
		if !event.Success {
			return
		}
		c.MessagesRecorded.Inc()
		if fired, _ := event.Fields["fired"].(bool); fired {
			reason := "base"
			if _, ok := event.Fields["keyword"]; ok {
				reason = "keyword"
			}
			c.Triggers.WithLabelValues(reason).Inc()
		}
	case service.UseCaseConnection:
		if tier, ok := event.Fields["tier"].(string); ok {
			c.Matches.WithLabelValues(tier).Inc()
		}
		if fb, _ := event.Fields["fallback"].(bool); fb {
			c.NarrativeFallbacks.Inc()
		}
	case service.UseCaseRecommendation:
		outcome, _ := event.Fields["outcome"].(string)
		if outcome == "" {
			outcome = "error"
		}
		c.Recommendations.WithLabelValues(outcome).Inc()
	}
}

// TaskFailed is a tasks.FailureHook.
func (c *Collector) TaskFailed(name string, _ error) {
	c.TaskFailures.WithLabelValues(name).Inc()
}

// BreakerChanged is a breaker.StateListener.
func (c *Collector) BreakerChanged(name string, _, to gobreaker.State) {
	c.BreakerState.WithLabelValues(name).Set(float64(to))
}
