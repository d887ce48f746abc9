// Package api exposes the introspection HTTP surface named in: listing
// configured routes, listing and kicking live sessions. Grounded on the
// teacher's server/api_server.go (gorilla/mux router + a background
// http.ListenAndServe goroutine); the handlers themselves are new, since
// the teacher's retrieved copy declares the router but never registers
// anything on it.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mc-gateway/gateway/route"
	"github.com/mc-gateway/gateway/session"
)

// Server is the introspection HTTP API bound to its own listen address,
// separate from the Minecraft-protocol listener.
type Server struct {
	router *mux.Router
	routes *route.Registry
	sessions *session.Registry
}

// New builds a Server backed by routes and sessions.
func New(routes *route.Registry, sessions *session.Registry) *Server {
	s := &Server{
		router: mux.NewRouter(),
		routes: routes,
		sessions: sessions,
	}
	s.router.HandleFunc("/routes", s.handleListRoutes).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions", s.handleListSessionsForRoute).Methods(http.MethodGet).Queries("route", "{route}")
	s.router.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions/{id}/kick", s.handleKick).Methods(http.MethodPost)
	return s
}

// Serve starts an HTTP server bound to addr in a background goroutine and
// returns immediately; a ListenAndServe failure is logged, not returned.
func (s *Server) Serve(addr string) {
	logrus.WithField("binding", addr).Info("api: serving introspection requests")
	go func() {
		if err := http.ListenAndServe(addr, s.router); err != nil {
			logrus.WithError(err).Error("api: server failed")
		}
	}()
}

type routeSummary struct {
	ConfigID string `json:"config_id"`
	Patterns []string `json:"patterns"`
	Mode string `json:"mode"`
	Backends []string `json:"backends"`
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	configs := s.routes.All()
	out := make([]routeSummary, 0, len(configs))
	for _, cfg := range configs {
		backends := make([]string, 0, len(cfg.Backends))
		for _, b := range cfg.Backends {
			backends = append(backends, b.Address)
		}
		out = append(out, routeSummary{
			ConfigID: cfg.ConfigID,
			Patterns: cfg.Patterns,
			Mode: cfg.Mode.String(),
			Backends: backends,
		})
	}
	writeJSON(w, out)
}

type sessionSummary struct {
	ID string `json:"id"`
	ConfigID string `json:"config_id"`
	Username string `json:"username"`
	State string `json:"state"`
	BytesIn int64 `json:"bytes_client_to_backend"`
	BytesOut int64 `json:"bytes_backend_to_client"`
}

func summarize(sess *session.Session) sessionSummary {
	return sessionSummary{
		ID: sess.ID,
		ConfigID: sess.ConfigID,
		Username: sess.Username,
		State: sess.State().String(),
		BytesIn: sess.BytesClientToBackend.Load(),
		BytesOut: sess.BytesBackendToClient.Load(),
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.ListSessions()
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summarize(sess))
	}
	writeJSON(w, out)
}

func (s *Server) handleListSessionsForRoute(w http.ResponseWriter, r *http.Request) {
	configID := r.URL.Query().Get("route")
	sessions := s.sessions.ListSessionsForRoute(configID)
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summarize(sess))
	}
	writeJSON(w, out)
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	routeScope := r.URL.Query().Get("route")
	if !s.sessions.Kick(id, routeScope) {
		http.Error(w, "no matching session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("api: encode response")
	}
}
