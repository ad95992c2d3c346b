// Package debugsrv exposes a small go-chi/chi HTTP router for interactive
// inspection of a running engine.Engine while cmd/kbsim replays a script:
// the host-side analogue of flashing firmware and watching status LEDs.
package debugsrv

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tapstack/corefw/engine"
)

// Server wraps a chi.Router exposing read-only engine introspection.
// Every handler calls Engine.Snapshot, which never mutates engine state,
// so Server is safe to run concurrently with the engine's own single
// logical goroutine.
type Server struct {
	router chi.Router
	engine *engine.Engine
}

// New builds a Server wired to engine. Routes:
//
//	GET /healthz      -> 200 "ok"
//	GET /debug/state  -> JSON snapshot of engine occupancy
func New(e *engine.Engine) *Server {
	s := &Server{router: chi.NewRouter(), engine: e}
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/debug/state", s.handleState)
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}
