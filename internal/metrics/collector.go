package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/rewriting-gateway/internal/backend"
)

type EventType string

const (
	EventRequestRouted     EventType = "request_routed"
	EventRequestDelegated  EventType = "request_delegated"
	EventResponseCompleted EventType = "response_completed"
	EventUpstreamFailed    EventType = "upstream_failed"
	EventHealthChanged     EventType = "health_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Route      string
	Backend    string
	Duration   time.Duration
	StatusCode int
	Branch     Branch
	Reason     string
	Healthy    bool
}

type Collector struct {
	eventCh    chan MetricEvent
	metrics    *Metrics
	prometheus *Prometheus
	logger     *slog.Logger
	backends   *backend.Registry
}

// NewCollector creates a collector. prom may be nil.
func NewCollector(bufferSize int, prom *Prometheus, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh:    make(chan MetricEvent, bufferSize),
		metrics:    NewMetrics(),
		prometheus: prom,
		logger:     logger,
	}
}

// TrackBackends makes snapshots and the Prometheus registry report the live
// load of every backend in r. Call it before Start.
func (c *Collector) TrackBackends(r *backend.Registry) {
	c.backends = r
	if c.prometheus != nil {
		c.prometheus.trackBackends(r)
	}
}

// Emit queues event without blocking; the event is dropped when the buffer
// is full.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestRouted:
		c.metrics.IncrementRequests(event.Route)

	case EventRequestDelegated:
		c.metrics.IncrementDelegated()

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Route, event.Duration, event.StatusCode, event.Branch)

	case EventUpstreamFailed:
		c.metrics.RecordUpstreamError(event.Route, event.Reason)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Backend, event.Healthy)
	}

	if c.prometheus != nil {
		c.prometheus.observe(event)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	snap := c.metrics.Snapshot()
	if c.backends == nil {
		return snap
	}

	for _, b := range c.backends.All() {
		bh, seen := snap.Backends[b.String()]
		if !seen {
			bh.Healthy = b.IsHealthy()
		}
		bh.InFlight = b.InFlight()
		bh.EWMAResponse = b.EWMATime()
		snap.Backends[b.String()] = bh
	}

	return snap
}
