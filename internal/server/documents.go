package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/majedsharif/corti-scribe/internal/corti"
)

// handleCreateDocument validates the request shape and forwards it to the
// provider's document-generation call. Responses, success or failure, are
// relayed verbatim.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	if s.api == nil {
		writeError(w, http.StatusServiceUnavailable, "provider not configured")
		return
	}
	interactionID := r.PathValue("id")

	var req corti.DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if len(req.Context) == 0 {
		writeError(w, http.StatusBadRequest, "context must be a non-empty array")
		return
	}
	if req.TemplateKey == "" {
		writeError(w, http.StatusBadRequest, "templateKey is required")
		return
	}
	if req.OutputLanguage == "" {
		writeError(w, http.StatusBadRequest, "outputLanguage is required")
		return
	}

	body, err := s.api.CreateDocument(r.Context(), interactionID, req)
	if err != nil {
		s.relayAPIError(w, err, "generating document")
		return
	}

	if s.db != nil {
		if _, err := s.db.SaveDocument(interactionID, req.TemplateKey, body); err != nil {
			s.log.Warn().Err(err).Str("interactionId", interactionID).Msg("archiving document failed")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// relayAPIError forwards provider failures verbatim: the provider's HTTP
// status and body when available, 502 otherwise. No retry.
func (s *Server) relayAPIError(w http.ResponseWriter, err error, action string) {
	var apiErr *corti.APIError
	if errors.As(err, &apiErr) {
		s.log.Warn().Int("status", apiErr.StatusCode).Msg(action + " failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.StatusCode)
		w.Write(apiErr.Body)
		return
	}
	s.log.Error().Err(err).Msg(action + " failed")
	writeError(w, http.StatusBadGateway, err.Error())
}
