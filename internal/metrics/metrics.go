package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	downstreamCalls    *prometheus.CounterVec
	downstreamDuration *prometheus.HistogramVec
	ticks              *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

// New registers the gateway collectors on a dedicated registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "botgateway"
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		downstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downstream_requests_total",
			Help:      "Calls made to the bot service, by endpoint and outcome code.",
		}, []string{"endpoint", "outcome"}),
		downstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "downstream_request_duration_seconds",
			Help:      "Latency of calls made to the bot service.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_ticks_total",
			Help:      "Health scheduler ticks, by action taken.",
		}, []string{"action"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Inbound requests, by method and status code.",
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		m.downstreamCalls,
		m.downstreamDuration,
		m.ticks,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDownstream records one downstream call. outcome is "ok" or an error code.
func (m *Metrics) ObserveDownstream(endpoint, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.downstreamCalls.WithLabelValues(endpoint, outcome).Inc()
	m.downstreamDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (m *Metrics) ObserveTick(action string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveRequest(method, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}
