// Package backend tracks the backend origins referenced by the route table.
// It records in-flight requests, response time, and the health status
// reported by the periodic prober. This state is informational: routing
// never consults it.
package backend
