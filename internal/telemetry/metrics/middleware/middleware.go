package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Middleware instruments wrapped handlers with request count,
// duration and response size metrics.
type Middleware struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.SummaryVec
}

func New(registry prometheus.Registerer, buckets []float64) *Middleware {
	if buckets == nil {
		buckets = defaultDurationBuckets
	}

	factory := promauto.With(registry)

	return &Middleware{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Tracks the number of HTTP requests.",
			}, []string{"method", "code", "handler"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Tracks the latencies for HTTP requests.",
				Buckets: buckets,
			},
			[]string{"method", "code", "handler"},
		),
		responseSize: factory.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "http_response_size_bytes",
				Help: "Tracks the size of HTTP responses.",
			},
			[]string{"method", "code", "handler"},
		),
	}
}

func (m *Middleware) WrapHandler(handlerName string, handler http.Handler) http.HandlerFunc {
	handlerLabel := prometheus.Labels{"handler": handlerName}

	base := promhttp.InstrumentHandlerCounter(
		m.requestsTotal.MustCurryWith(handlerLabel),
		promhttp.InstrumentHandlerDuration(
			m.requestDuration.MustCurryWith(handlerLabel),
			promhttp.InstrumentHandlerResponseSize(
				m.responseSize.MustCurryWith(handlerLabel),
				handler,
			),
		),
	)

	return base.ServeHTTP
}
