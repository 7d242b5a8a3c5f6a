package handler

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/rewriting-gateway/internal/backend"
	"github.com/angeloszaimis/rewriting-gateway/internal/forwarder"
	"github.com/angeloszaimis/rewriting-gateway/internal/metrics"
	"github.com/angeloszaimis/rewriting-gateway/internal/rewrite"
	"github.com/angeloszaimis/rewriting-gateway/internal/route"
)

type GatewayHandler struct {
	logger           *slog.Logger
	routes           *route.Table
	forwarder        *forwarder.Forwarder
	rewriter         *rewrite.Rewriter
	backends         *backend.Registry
	metricsCollector *metrics.Collector
}

// Wrap returns a handler that serves every request a route claims and hands
// the rest to next unchanged.
func (g *GatewayHandler) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Serve(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// Serve proxies r when a route claims its path. It returns false, having
// written nothing, when no route matches.
func (g *GatewayHandler) Serve(w http.ResponseWriter, r *http.Request) bool {
	target, ok := g.routes.Resolve(r.URL.EscapedPath(), r.URL.RawQuery)
	if !ok {
		g.metricsCollector.Emit(metrics.MetricEvent{
			Type:      metrics.EventRequestDelegated,
			Timestamp: time.Now(),
		})
		return false
	}

	routeName := target.Entry.Prefix
	backendName := target.URL.Scheme + "://" + target.URL.Host

	log := g.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("route", routeName))

	log.Info("Forwarding request",
		slog.String("from", extractClientIP(r)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("host", r.Host),
		slog.String("target", target.URL.String()))

	g.metricsCollector.Emit(metrics.MetricEvent{
		Type:      metrics.EventRequestRouted,
		Timestamp: time.Now(),
		Route:     routeName,
		Backend:   backendName,
	})

	b := g.backends.Lookup(target.URL)
	if b != nil {
		b.Acquire()
		defer b.Release()
	}

	start := time.Now()

	resp, err := g.forwarder.Forward(target.URL, r)
	if err != nil {
		g.fail(w, log, routeName, err)
		return true
	}
	defer resp.Body.Close()

	result, err := g.rewriter.MaybeRewrite(resp, r.Host)
	if err != nil {
		if !errors.Is(err, rewrite.ErrMalformedBody) {
			err = forwarder.Classify(r.Context(), "read_body", target.URL.String(), err)
		}
		g.fail(w, log, routeName, err)
		return true
	}

	copyResponseHeaders(w.Header(), resp.Header)

	branch := metrics.BranchPassthrough
	if result.Rewritten {
		branch = metrics.BranchRewritten
		w.Header().Set("Content-Type", result.ContentType)
		w.Header().Set("Content-Length", result.ContentLengthHeader())
	}

	w.WriteHeader(resp.StatusCode)

	if result.Rewritten {
		_, err = w.Write(result.Body)
	} else {
		_, err = io.Copy(w, resp.Body)
	}
	if err != nil {
		// Status and headers are already on the wire; all that is left is
		// to record the truncated body.
		log.Warn("Response body interrupted", slog.Any("err", err))
	}

	duration := time.Since(start)
	if b != nil {
		b.RecordResponse(duration)
	}

	g.metricsCollector.Emit(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Route:      routeName,
		Backend:    backendName,
		Duration:   duration,
		StatusCode: resp.StatusCode,
		Branch:     branch,
	})

	log.Debug("Request completed",
		slog.Int("status", resp.StatusCode),
		slog.String("branch", string(branch)),
		slog.Duration("duration", duration))

	return true
}

// fail answers a request whose upstream exchange or rewrite failed. Nothing
// has been written to w yet.
func (g *GatewayHandler) fail(w http.ResponseWriter, log *slog.Logger, routeName string, err error) {
	var (
		status int
		reason string
	)

	switch {
	case forwarder.IsCancelled(err):
		reason = "cancelled"
	case errors.Is(err, rewrite.ErrMalformedBody):
		status, reason = http.StatusBadGateway, "malformed_body"
	case forwarder.IsTimeout(err):
		status, reason = http.StatusGatewayTimeout, "timeout"
	default:
		status, reason = http.StatusBadGateway, "unavailable"
	}

	g.metricsCollector.Emit(metrics.MetricEvent{
		Type:      metrics.EventUpstreamFailed,
		Timestamp: time.Now(),
		Route:     routeName,
		Reason:    reason,
	})

	if status == 0 {
		log.Info("Client went away before the upstream call completed", slog.Any("err", err))
		return
	}

	log.Error("Upstream request failed",
		slog.String("reason", reason),
		slog.Int("status", status),
		slog.Any("err", err))

	http.Error(w, http.StatusText(status), status)
}

// copyResponseHeaders replaces dst's values with every header from src and
// drops Transfer-Encoding, which no longer describes the body being sent.
func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
	dst.Del("Transfer-Encoding")
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func NewGatewayHandler(
	logger *slog.Logger,
	routes *route.Table,
	fwd *forwarder.Forwarder,
	rewriter *rewrite.Rewriter,
	backends *backend.Registry,
	collector *metrics.Collector,
) *GatewayHandler {
	return &GatewayHandler{
		logger:           logger,
		routes:           routes,
		forwarder:        fwd,
		rewriter:         rewriter,
		backends:         backends,
		metricsCollector: collector,
	}
}
