package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/httputil"
)

type runInferenceRequest struct {
	ParticipantID string `json:"participant_id"`
	WindowSeconds int    `json:"window_seconds"`
}

// handleRunInference runs the pipeline for one participant on demand and
// returns the resulting state. A window with too few usable readings is a
// 422: the request was fine, the data was not there.
func (s *Server) handleRunInference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req runInferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.ParticipantID == "" {
		httputil.BadRequest(w, "participant_id is required")
		return
	}
	if req.WindowSeconds < 0 {
		httputil.BadRequest(w, "window_seconds must be positive")
		return
	}

	ctx := r.Context()
	if s.tuning != nil {
		var cancel func()
		ctx, cancel = contextWithTimeout(ctx, s.tuning.GetInferenceTimeout())
		defer cancel()
	}

	state, err := s.pipeline.RunInference(ctx, req.ParticipantID, req.WindowSeconds)
	if err != nil {
		s.writeError(w, err)
		return
	}

	httputil.WriteJSONOK(w, state)
}

// handleLatestAffect returns the most recent inferred state, 404 when the
// participant has none yet.
func (s *Server) handleLatestAffect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		httputil.BadRequest(w, "participant_id is required")
		return
	}

	state, err := s.pipeline.Latest(r.Context(), participantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if state == nil {
		httputil.NotFound(w, fmt.Sprintf("no affect state for participant %s", participantID))
		return
	}

	httputil.WriteJSONOK(w, state)
}

// handleAffectHistory returns inferred states in a time range, newest
// first.
func (s *Server) handleAffectHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		httputil.BadRequest(w, "participant_id is required")
		return
	}

	since, err := parseTimeParam(r, "since")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	until, err := parseTimeParam(r, "until")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	limit, err := parseLimitParam(r, "limit", 288)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	states, err := s.pipeline.History(r.Context(), participantID, since, until, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if states == nil {
		states = []affect.AffectState{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"states": states,
		"count":  len(states),
	})
}
