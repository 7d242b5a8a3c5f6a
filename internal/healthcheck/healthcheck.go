package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/rewriting-gateway/internal/backend"
)

// ChangeFunc is called whenever a probe flips a backend's health status.
type ChangeFunc func(b *backend.Backend, healthy bool)

// Checker probes backend origins on a fixed interval.
type Checker struct {
	client   *http.Client
	path     string
	interval time.Duration
	logger   *slog.Logger
	onChange ChangeFunc
}

// New creates a Checker that requests path on each origin. onChange may be nil.
func New(path string, interval time.Duration, logger *slog.Logger, onChange ChangeFunc) *Checker {
	return &Checker{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		path:     path,
		interval: interval,
		logger:   logger,
		onChange: onChange,
	}
}

// Start launches one probing goroutine per backend. They stop with ctx.
func (c *Checker) Start(ctx context.Context, backends []*backend.Backend) {
	for _, b := range backends {
		go c.Run(ctx, b)
	}
}

// Run probes b every interval until ctx is done.
func (c *Checker) Run(ctx context.Context, b *backend.Backend) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Health check stopped",
				slog.String("backend", b.String()))
			return

		case <-ticker.C:
			c.Probe(ctx, b)
		}
	}
}

// Probe performs a single GET against the backend's health path and
// records the outcome. It returns the probed status.
func (c *Checker) Probe(ctx context.Context, b *backend.Backend) bool {
	healthURL := b.Origin().ResolveReference(&url.URL{Path: c.path})

	healthy := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err == nil {
		res, err := c.client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, res.Body)
			res.Body.Close()
			healthy = res.StatusCode == http.StatusOK
		}
	}

	if ctx.Err() != nil {
		return b.IsHealthy()
	}

	if b.SetHealthy(healthy) {
		if healthy {
			c.logger.Info("Backend is back up",
				slog.String("backend", b.String()))
		} else {
			c.logger.Warn("Backend is down",
				slog.String("backend", b.String()),
				slog.String("probe", healthURL.String()))
		}

		if c.onChange != nil {
			c.onChange(b, healthy)
		}
	}

	return healthy
}
