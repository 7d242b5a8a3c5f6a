package main

import (
	"net/http"
)

// setupRouter mounts the operational endpoints and wraps them in the gateway.
// Routed paths take precedence, so a route covering "/" hides these.
func setupRouter(gw *gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", gw.collector.Handler())
	mux.Handle("/metrics", gw.prometheus.Handler())

	return gw.handler.Wrap(mux)
}
