package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/httputil"
)

// maxReadingsBody bounds ingest request bodies. A day of one participant's
// samples fits comfortably; anything bigger should arrive in batches.
const maxReadingsBody = 10 << 20

// handleReadings ingests readings pushed over HTTP. The body is either a
// single reading object or an array; both run through the shared ingest
// path, so validation, unit normalisation and rule checks behave exactly
// as they do for UDP and serial sources.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReadingsBody))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		httputil.BadRequest(w, "empty body")
		return
	}

	if trimmed[0] == '[' {
		var readings []affect.SensorReading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		if err := s.processor.ProcessBatch(r.Context(), readings); err != nil {
			s.writeError(w, err)
			return
		}
		httputil.Created(w, map[string]interface{}{
			"accepted": len(readings),
		})
		return
	}

	var reading affect.SensorReading
	if err := json.Unmarshal(trimmed, &reading); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if err := s.processor.Process(r.Context(), &reading); err != nil {
		s.writeError(w, err)
		return
	}

	// The processor filled the ID and normalised the unit; echo the stored
	// form back.
	httputil.Created(w, reading)
}

// handleRecentReadings lists a participant's newest readings.
func (s *Server) handleRecentReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		httputil.BadRequest(w, "participant_id is required")
		return
	}

	limit, err := parseLimitParam(r, "limit", 100)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	readings, err := s.store.RecentReadings(r.Context(), participantID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if readings == nil {
		readings = []affect.SensorReading{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"readings": readings,
		"count":    len(readings),
	})
}
