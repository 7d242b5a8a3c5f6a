package backend

import (
	"net/url"
	"sync"
	"time"
)

// Backend is a single backend origin (scheme://host) with request tracking.
type Backend struct {
	origin           *url.URL
	mutex            sync.Mutex
	isHealthy        bool
	inFlight         int
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// New creates a Backend for the origin of u. Path, query and fragment are
// dropped. The backend starts healthy until a probe says otherwise.
func New(u *url.URL) *Backend {
	return &Backend{
		origin:    &url.URL{Scheme: u.Scheme, Host: u.Host},
		isHealthy: true,
	}
}

// Origin returns the scheme://host of the backend.
func (b *Backend) Origin() *url.URL {
	return b.origin
}

// String returns the origin as text; used as the metrics label.
func (b *Backend) String() string {
	return b.origin.String()
}

// Acquire marks the start of a forwarded request.
func (b *Backend) Acquire() {
	b.mutex.Lock()
	b.inFlight++
	b.mutex.Unlock()
}

// Release marks the end of a forwarded request.
func (b *Backend) Release() {
	b.mutex.Lock()
	if b.inFlight > 0 {
		b.inFlight--
	}
	b.mutex.Unlock()
}

// InFlight returns the number of requests currently forwarded to the origin.
func (b *Backend) InFlight() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.inFlight
}

// IsHealthy returns the last probed health status.
func (b *Backend) IsHealthy() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.isHealthy
}

// SetHealthy updates the health status and reports whether it changed.
func (b *Backend) SetHealthy(healthy bool) (changed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.isHealthy == healthy {
		return false
	}

	b.isHealthy = healthy
	return true
}

// RecordResponse folds duration into the exponentially weighted moving
// average response time.
func (b *Backend) RecordResponse(duration time.Duration) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.hasEWMA {
		b.ewmaResponseTime = duration
		b.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	b.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(b.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the smoothed response time, or 0 before any response.
func (b *Backend) EWMATime() time.Duration {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.hasEWMA {
		return 0
	}

	return b.ewmaResponseTime
}
