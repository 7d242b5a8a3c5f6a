// Package healthcheck periodically probes backend origins and records the
// result on the backend registry. Probing is observational: a backend marked
// down still receives the requests its routes resolve to.
package healthcheck
