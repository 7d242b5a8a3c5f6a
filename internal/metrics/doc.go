// Package metrics collects per-route statistics for the gateway.
//
// The request handler emits events into a buffered channel with non-blocking
// sends, and a single collector goroutine folds them into:
//   - request counts per route, and how many requests no route claimed
//   - response status codes and whether the body was rewritten or passed through
//   - response time average and percentiles (P50, P95, P99) per route
//   - upstream failures by reason
//   - last probed health per backend origin
//
// The same events are mirrored into Prometheus collectors when a Prometheus
// instance is supplied.
//
// Example usage:
//
//	registry := prometheus.NewRegistry()
//	collector := metrics.NewCollector(1000, metrics.NewPrometheus(registry), logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Route:      "/api",
//		Backend:    "http://api.internal:8080",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//		Branch:     metrics.BranchRewritten,
//	})
//
//	snapshot := collector.Snapshot()
//
// On shutdown the collector drains queued events before it stops.
package metrics
