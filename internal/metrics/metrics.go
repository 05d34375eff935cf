// Package metrics exposes Prometheus instrumentation for the adapter.
//
// All methods are safe to call on a nil *Metrics, so components can be
// constructed without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "appmixer_mcp"

// Metrics holds the collectors registered by New.
type Metrics struct {
	gatherer prometheus.Gatherer

	toolCalls           *prometheus.CounterVec
	toolCallDuration    *prometheus.HistogramVec
	gatewayTools        prometheus.Gauge
	gatewayFetchFailure prometheus.Counter
	streamConnects      *prometheus.CounterVec
	streamEvents        *prometheus.CounterVec
	streamBadFrames     prometheus.Counter
	tokenRenewals       *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool invocations",
			},
			[]string{"tool", "kind", "status"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Duration of tool invocations in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		gatewayTools: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_tools",
			Help:      "Number of gateway tools in the latest registry snapshot",
		}),
		gatewayFetchFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_fetch_failures_total",
			Help:      "Total number of failed gateway list fetches",
		}),
		streamConnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_connects_total",
				Help:      "Event stream connection attempts by outcome",
			},
			[]string{"result"},
		),
		streamEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_events_total",
				Help:      "Event stream events received by type",
			},
			[]string{"type"},
		),
		streamBadFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bad_frames_total",
			Help:      "Event stream frames that were not valid JSON",
		}),
		tokenRenewals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_renewals_total",
				Help:      "Bearer token login exchanges by outcome",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveToolCall counts one tool invocation and records its duration.
func (m *Metrics) ObserveToolCall(tool, kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, kind, status(err)).Inc()
	m.toolCallDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetGatewayTools records how many gateway tools the last listing produced.
func (m *Metrics) SetGatewayTools(n int) {
	if m == nil {
		return
	}
	m.gatewayTools.Set(float64(n))
}

// IncGatewayFetchFailure counts a failed gateway listing.
func (m *Metrics) IncGatewayFetchFailure() {
	if m == nil {
		return
	}
	m.gatewayFetchFailure.Inc()
}

// ObserveStreamConnect counts an event stream connection attempt by outcome.
func (m *Metrics) ObserveStreamConnect(err error) {
	if m == nil {
		return
	}
	m.streamConnects.WithLabelValues(status(err)).Inc()
}

// ObserveStreamEvent counts a delivered stream event by type. An empty type
// is recorded as "unknown".
func (m *Metrics) ObserveStreamEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.streamEvents.WithLabelValues(eventType).Inc()
}

// IncStreamBadFrame counts a stream frame that was not valid JSON.
func (m *Metrics) IncStreamBadFrame() {
	if m == nil {
		return
	}
	m.streamBadFrames.Inc()
}

// ObserveTokenRenewal counts a login exchange by outcome.
func (m *Metrics) ObserveTokenRenewal(err error) {
	if m == nil {
		return
	}
	m.tokenRenewals.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
