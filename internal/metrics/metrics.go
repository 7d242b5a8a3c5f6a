package metrics

import (
	"sort"
	"sync"
	"time"
)

// Branch names how a routed response body was delivered.
type Branch string

const (
	BranchPassthrough Branch = "passthrough"
	BranchRewritten   Branch = "rewritten"
)

const maxSamples = 1000

type Metrics struct {
	mutex          sync.RWMutex
	requests       map[string]int64
	rewritten      map[string]int64
	passthrough    map[string]int64
	upstreamErrors map[string]map[string]int64
	responseTimes  map[string][]time.Duration
	statusCodes    map[string]map[int]int64
	healthStatus   map[string]bool
	delegated      int64
	startTime      time.Time
}

type Snapshot struct {
	TotalRequests int64                    `json:"total_requests"`
	Delegated     int64                    `json:"delegated"`
	Uptime        time.Duration            `json:"uptime"`
	Routes        map[string]RouteMetrics  `json:"routes"`
	Backends      map[string]BackendHealth `json:"backends"`
}

type RouteMetrics struct {
	Requests       int64            `json:"requests"`
	Rewritten      int64            `json:"rewritten"`
	Passthrough    int64            `json:"passthrough"`
	UpstreamErrors map[string]int64 `json:"upstream_errors,omitempty"`
	AvgResponse    time.Duration    `json:"avg_response"`
	P50Response    time.Duration    `json:"p50_response"`
	P95Response    time.Duration    `json:"p95_response"`
	P99Response    time.Duration    `json:"p99_response"`
	StatusCodes    map[int]int64    `json:"status_codes"`
}

type BackendHealth struct {
	Healthy      bool          `json:"healthy"`
	InFlight     int           `json:"in_flight"`
	EWMAResponse time.Duration `json:"ewma_response"`
}

func (m *Metrics) IncrementRequests(route string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[route]++
}

func (m *Metrics) IncrementDelegated() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.delegated++
}

func (m *Metrics) RecordResponse(route string, duration time.Duration, statusCode int, branch Branch) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[route] = append(m.responseTimes[route], duration)

	if len(m.responseTimes[route]) > maxSamples {
		m.responseTimes[route] = m.responseTimes[route][1:]
	}

	if m.statusCodes[route] == nil {
		m.statusCodes[route] = make(map[int]int64)
	}
	m.statusCodes[route][statusCode]++

	switch branch {
	case BranchRewritten:
		m.rewritten[route]++
	case BranchPassthrough:
		m.passthrough[route]++
	}
}

func (m *Metrics) RecordUpstreamError(route, reason string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.upstreamErrors[route] == nil {
		m.upstreamErrors[route] = make(map[string]int64)
	}
	m.upstreamErrors[route][reason]++
}

func (m *Metrics) UpdateHealthStatus(backend string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[backend] = healthy
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Delegated: m.delegated,
		Uptime:    time.Since(m.startTime),
		Routes:    make(map[string]RouteMetrics),
		Backends:  make(map[string]BackendHealth),
	}

	allRoutes := make(map[string]bool)
	for route := range m.requests {
		allRoutes[route] = true
	}
	for route := range m.responseTimes {
		allRoutes[route] = true
	}
	for route := range m.upstreamErrors {
		allRoutes[route] = true
	}

	for route := range allRoutes {
		snap.TotalRequests += m.requests[route]

		rm := RouteMetrics{
			Requests:       m.requests[route],
			Rewritten:      m.rewritten[route],
			Passthrough:    m.passthrough[route],
			UpstreamErrors: copyCounts(m.upstreamErrors[route]),
			StatusCodes:    copyCodes(m.statusCodes[route]),
		}

		durations := m.responseTimes[route]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			rm.AvgResponse = average(sorted)
			rm.P50Response = percentile(sorted, 0.50)
			rm.P95Response = percentile(sorted, 0.95)
			rm.P99Response = percentile(sorted, 0.99)
		}

		snap.Routes[route] = rm
	}

	for backend, healthy := range m.healthStatus {
		snap.Backends[backend] = BackendHealth{Healthy: healthy}
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:       make(map[string]int64),
		rewritten:      make(map[string]int64),
		passthrough:    make(map[string]int64),
		upstreamErrors: make(map[string]map[string]int64),
		responseTimes:  make(map[string][]time.Duration),
		statusCodes:    make(map[string]map[int]int64),
		healthStatus:   make(map[string]bool),
		startTime:      time.Now(),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyCodes(in map[int]int64) map[int]int64 {
	out := make(map[int]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
