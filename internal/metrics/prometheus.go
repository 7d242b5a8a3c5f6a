package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/rewriting-gateway/internal/backend"
)

// Prometheus mirrors collector events into Prometheus collectors.
type Prometheus struct {
	factory         promauto.Factory
	gatherer        prometheus.Gatherer
	requestsTotal   *prometheus.CounterVec
	delegatedTotal  prometheus.Counter
	responsesTotal  *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	backendUp       *prometheus.GaugeVec
}

// NewPrometheus registers the gateway collectors with registry.
func NewPrometheus(registry *prometheus.Registry) *Prometheus {
	factory := promauto.With(registry)

	return &Prometheus{
		factory:  factory,
		gatherer: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of requests claimed by a route",
			},
			[]string{"route"},
		),
		delegatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "delegated_total",
				Help:      "Total number of requests no route claimed",
			},
		),
		responsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "responses_total",
				Help:      "Total number of responses relayed to clients",
			},
			[]string{"route", "code", "branch"},
		),
		upstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "upstream_errors_total",
				Help:      "Total number of failed upstream exchanges",
			},
			[]string{"route", "reason"},
		),
		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "backend_duration_seconds",
				Help:      "Duration of proxied requests including body delivery",
				Buckets: []float64{
					.001, .005, .01, .025,
					.05, .1, .25, .5,
					1, 2.5, 5, 10,
				},
			},
			[]string{"backend"},
		),
		backendUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "backend",
				Name:      "up",
				Help:      "Last probed health of a backend origin (1 healthy, 0 down)",
			},
			[]string{"backend"},
		),
	}
}

// trackBackends registers gauges that read each backend's in-flight count
// and EWMA response time at scrape time.
func (p *Prometheus) trackBackends(r *backend.Registry) {
	for _, b := range r.All() {
		labels := prometheus.Labels{"backend": b.String()}

		p.factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   "gateway",
				Subsystem:   "backend",
				Name:        "in_flight",
				Help:        "Requests currently being proxied to a backend origin",
				ConstLabels: labels,
			},
			func() float64 { return float64(b.InFlight()) },
		)

		p.factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   "gateway",
				Subsystem:   "backend",
				Name:        "ewma_seconds",
				Help:        "Exponentially weighted moving average of backend response time",
				ConstLabels: labels,
			},
			func() float64 { return b.EWMATime().Seconds() },
		)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func (p *Prometheus) observe(event MetricEvent) {
	switch event.Type {
	case EventRequestRouted:
		p.requestsTotal.WithLabelValues(event.Route).Inc()

	case EventRequestDelegated:
		p.delegatedTotal.Inc()

	case EventResponseCompleted:
		p.responsesTotal.WithLabelValues(event.Route, strconv.Itoa(event.StatusCode), string(event.Branch)).Inc()
		p.backendDuration.WithLabelValues(event.Backend).Observe(event.Duration.Seconds())

	case EventUpstreamFailed:
		p.upstreamErrors.WithLabelValues(event.Route, event.Reason).Inc()

	case EventHealthChanged:
		up := 0.0
		if event.Healthy {
			up = 1
		}
		p.backendUp.WithLabelValues(event.Backend).Set(up)
	}
}
