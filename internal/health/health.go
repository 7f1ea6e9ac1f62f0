// Package health serves the local status endpoints of the daemon.
//
//   - GET /healthz always answers 200 while the process serves HTTP.
//   - GET /readyz runs every [Checker] and answers 503 if any fails.
//   - GET /status reports a JSON snapshot of the capture flows.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 3 * time.Second

// Checker checks one dependency, e.g. the transcription backend.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// StatusFunc returns the body of /status. It must be safe for concurrent
// use.
type StatusFunc func() any

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the endpoints. The checker list is fixed at construction.
type Handler struct {
	checkers []Checker
	status   StatusFunc
}

// New returns a handler for checkers. status may be nil, in which case
// /status answers 404.
func New(status StatusFunc, checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...), status: status}
}

// Healthz is the liveness check.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs all checkers concurrently, each under [checkTimeout].
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		failed bool
		g      errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				failed = true
				return nil
			}
			checks[c.Name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	if failed {
		WriteJSON(w, http.StatusServiceUnavailable, report{Status: "fail", Checks: checks})
		return
	}
	WriteJSON(w, http.StatusOK, report{Status: "ok", Checks: checks})
}

// Status writes the snapshot returned by the [StatusFunc].
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		http.NotFound(w, r)
		return
	}
	WriteJSON(w, http.StatusOK, h.status())
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /status", h.Status)
}

// WriteJSON writes v as the JSON body of a code response.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}
