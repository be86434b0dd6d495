package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/halcyon-health/affect.report/internal/httputil"
	"github.com/halcyon-health/affect.report/internal/store"
	"github.com/halcyon-health/affect.report/internal/units"
)

// handleParticipants lists the roster.
func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	participants, err := s.store.GetAllParticipants(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if participants == nil {
		participants = []store.Participant{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"participants": participants,
		"count":        len(participants),
	})
}

// handleParticipantByID routes get, enrollment update, delete, and the
// baseline reset action for one participant.
func (s *Server) handleParticipantByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/participants/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)

	participantID := strings.TrimSpace(parts[0])
	if participantID == "" {
		httputil.BadRequest(w, "participant_id is required")
		return
	}

	if len(parts) == 2 {
		if parts[1] != "reset" {
			httputil.NotFound(w, fmt.Sprintf("unknown participant action %q", parts[1]))
			return
		}
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		s.handleResetParticipant(w, r, participantID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetParticipant(w, r, participantID)
	case http.MethodPut:
		s.handleUpsertParticipant(w, r, participantID)
	case http.MethodDelete:
		s.handleDeleteParticipant(w, r, participantID)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request, participantID string) {
	p, err := s.store.GetParticipant(r.Context(), participantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, p)
}

type upsertParticipantRequest struct {
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

// handleUpsertParticipant sets enrollment details. The timezone drives
// prompt slot scheduling, so it must resolve in the tz database.
func (s *Server) handleUpsertParticipant(w http.ResponseWriter, r *http.Request, participantID string) {
	var req upsertParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if req.Timezone != "" && !units.IsTimezoneValid(req.Timezone) {
		httputil.BadRequest(w, fmt.Sprintf("unknown timezone %q", req.Timezone))
		return
	}

	p := &store.Participant{
		ParticipantID: participantID,
		DisplayName:   req.DisplayName,
		Timezone:      req.Timezone,
	}
	if err := s.store.UpsertParticipant(r.Context(), p); err != nil {
		s.writeError(w, err)
		return
	}

	stored, err := s.store.GetParticipant(r.Context(), participantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, stored)
}

func (s *Server) handleDeleteParticipant(w http.ResponseWriter, r *http.Request, participantID string) {
	if err := s.store.DeleteParticipant(r.Context(), participantID); err != nil {
		s.writeError(w, err)
		return
	}
	if s.onReset != nil {
		s.onReset(r.Context(), participantID)
	}

	httputil.WriteJSONOK(w, map[string]string{
		"status":         "deleted",
		"participant_id": participantID,
	})
}

// handleTimezones serves the curated timezone catalog for enrollment
// pickers. Any tz database name is accepted on upsert; the catalog just
// keeps client dropdowns manageable.
func (s *Server) handleTimezones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"timezones": units.CommonTimezones,
	})
}

// handleResetParticipant clears baselines and inferred states so the
// participant starts a fresh adaptation period. Raw readings stay.
func (s *Server) handleResetParticipant(w http.ResponseWriter, r *http.Request, participantID string) {
	if err := s.store.ResetParticipantBaselines(r.Context(), participantID); err != nil {
		s.writeError(w, err)
		return
	}
	if s.onReset != nil {
		s.onReset(r.Context(), participantID)
	}

	httputil.WriteJSONOK(w, map[string]string{
		"status":         "reset",
		"participant_id": participantID,
	})
}
