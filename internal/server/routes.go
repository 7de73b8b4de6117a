package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// registerRoutes sets up all HTTP routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("POST /api/interactions/{id}/documents", s.handleCreateDocument)
	mux.HandleFunc("GET /api/encounters", s.handleListEncounters)
	mux.HandleFunc("GET /api/encounters/{id}", s.handleGetEncounter)

	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	mux.HandleFunc("/", handleNotFound)
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

// handleTemplates relays the provider's template catalogue verbatim.
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if s.api == nil {
		writeError(w, http.StatusServiceUnavailable, "provider not configured")
		return
	}
	body, err := s.api.ListTemplates(r.Context())
	if err != nil {
		s.relayAPIError(w, err, "listing templates")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// handleListEncounters lists archived sessions from the local store.
func (s *Server) handleListEncounters(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "encounter archive is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	encounters, err := s.db.ListEncounters(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("listing encounters failed")
		writeError(w, http.StatusInternalServerError, "could not list encounters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"encounters": encounters})
}

// handleGetEncounter returns one archived session by interaction id.
func (s *Server) handleGetEncounter(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "encounter archive is not enabled")
		return
	}
	encounter, err := s.db.GetEncounter(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, encounter)
}

// handleNotFound returns a JSON 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
