package handlers

import (
	"bytes"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"

	httpctx "activityinsight/internal/http/ctx"
)

const metricsNamespace = "activityinsight"

// Metrics owns the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	trackedEvents   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sinkErrors      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		trackedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tracked_events_total",
				Help:      "Total number of tracked activity events.",
			},
			[]string{"event_type"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request durations in seconds.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"route", "method"},
		),
		sinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sink_errors_total",
				Help:      "Total number of activities an external sink failed to accept.",
			},
			[]string{"sink"},
		),
	}
	m.registry.MustRegister(
		m.trackedEvents,
		m.requestDuration,
		m.sinkErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Tracked counts one stored activity.
func (m *Metrics) Tracked(eventType string) {
	m.trackedEvents.WithLabelValues(eventType).Inc()
}

// SinkError counts one failed mirror write. It matches sink.ErrorHook.
func (m *Metrics) SinkError(sink string, _ error) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// Instrument times next under the given route pattern.
func (m *Metrics) Instrument(route string, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		httpctx.SetRoute(ctx, route)
		start := time.Now()
		next(ctx)
		m.requestDuration.WithLabelValues(route, string(ctx.Method())).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		metricFamilies, err := m.registry.Gather()
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to gather metrics")
			return
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range metricFamilies {
			if err := encoder.Encode(mf); err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}
