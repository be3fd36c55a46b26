// Package health serves liveness and readiness for the ops listener.
package health

import (
	"net/http"
	"sync/atomic"
)

// ready flips once configuration is loaded and the pipeline run has
// started; scrapers before that point get 503 from Readyz.
var ready atomic.Bool

// SetReady marks the process ready (or not) to serve scrapes.
func SetReady(v bool) {
	ready.Store(v)
}

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns 200 "ready\n" once the run has started, 503 before.
func Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
