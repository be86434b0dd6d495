package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/httputil"
)

// handleEMA handles self-report submission and listing. Labels are ground
// truth from the participant; they are stored verbatim and never fed back
// into inference.
func (s *Server) handleEMA(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListEMALabels(w, r)
	case http.MethodPost:
		s.handleCreateEMALabel(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleCreateEMALabel(w http.ResponseWriter, r *http.Request) {
	var label affect.EMALabel
	if err := json.NewDecoder(r.Body).Decode(&label); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if label.ParticipantID == "" {
		httputil.BadRequest(w, "participant_id is required")
		return
	}
	if label.Arousal < affect.ArousalMin || label.Arousal > affect.ArousalMax {
		httputil.BadRequest(w, fmt.Sprintf("arousal must be in [%g, %g]", affect.ArousalMin, affect.ArousalMax))
		return
	}
	if label.Valence < affect.ValenceMin || label.Valence > affect.ValenceMax {
		httputil.BadRequest(w, fmt.Sprintf("valence must be in [%g, %g]", affect.ValenceMin, affect.ValenceMax))
		return
	}
	if label.Stress < affect.StressMin || label.Stress > affect.StressMax {
		httputil.BadRequest(w, fmt.Sprintf("stress must be in [%g, %g]", affect.StressMin, affect.StressMax))
		return
	}

	if label.ID == "" {
		label.ID = uuid.New().String()
	}
	if label.Timestamp.IsZero() {
		label.Timestamp = time.Now().UTC()
	}

	if err := s.store.InsertEMALabel(r.Context(), &label); err != nil {
		s.writeError(w, err)
		return
	}

	httputil.Created(w, label)
}

func (s *Server) handleListEMALabels(w http.ResponseWriter, r *http.Request) {
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
	limit, err := parseLimitParam(r, "limit", 100)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	labels, err := s.store.EMALabels(r.Context(), participantID, since, until, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if labels == nil {
		labels = []affect.EMALabel{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"labels": labels,
		"count":  len(labels),
	})
}
