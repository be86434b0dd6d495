package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/halcyon-health/affect.report/internal/store"
)

func TestParticipantsAutoRegisteredByIngest(t *testing.T) {
	ts := setupTestServer(t)

	seedReadings(t, ts, "P001", 70)
	seedReadings(t, ts, "P002", 64)

	w := ts.request(t, http.MethodGet, "/api/participants", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	decodeJSON(t, w, &resp)
	if resp["count"] != float64(2) {
		t.Errorf("Expected 2 participants after ingest, got %v", resp["count"])
	}
}

func TestUpsertParticipant(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodPut, "/api/participants/P001",
		`{"display_name": "Pilot One", "timezone": "America/New_York"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var p store.Participant
	decodeJSON(t, w, &p)
	if p.DisplayName != "Pilot One" {
		t.Errorf("Expected display name to be stored, got %q", p.DisplayName)
	}
	if p.Timezone != "America/New_York" {
		t.Errorf("Expected timezone to be stored, got %q", p.Timezone)
	}

	w = ts.request(t, http.MethodGet, "/api/participants/P001", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	decodeJSON(t, w, &p)
	if p.ParticipantID != "P001" {
		t.Errorf("Expected participant P001, got %s", p.ParticipantID)
	}
}

func TestUpsertParticipantRejectsBadTimezone(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodPut, "/api/participants/P001",
		`{"display_name": "Pilot One", "timezone": "Mars/Olympus_Mons"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}

	var body map[string]string
	decodeJSON(t, w, &body)
	if !strings.Contains(body["error"], "timezone") {
		t.Errorf("Expected timezone error, got %q", body["error"])
	}
}

func TestGetParticipantNotFound(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodGet, "/api/participants/P404", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestTimezoneCatalog(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodGet, "/api/timezones", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp map[string][]string
	decodeJSON(t, w, &resp)
	zones := resp["timezones"]
	if len(zones) == 0 {
		t.Fatal("Expected a non-empty timezone catalog")
	}

	found := false
	for _, tz := range zones {
		if tz == "UTC" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected UTC in the catalog")
	}
}

func TestResetParticipant(t *testing.T) {
	ts := setupTestServer(t)

	seedReadings(t, ts, "P001", 68, 72, 75)
	runInference(t, ts, "P001")

	var resetIDs []string
	ts.onReset = func(_ context.Context, participantID string) {
		resetIDs = append(resetIDs, participantID)
	}

	w := ts.request(t, http.MethodPost, "/api/participants/P001/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, w, &resp)
	if resp["status"] != "reset" {
		t.Errorf("Expected status reset, got %q", resp["status"])
	}
	if len(resetIDs) != 1 || resetIDs[0] != "P001" {
		t.Errorf("Expected the reset hook to fire for P001, got %v", resetIDs)
	}

	// Affect history is gone, raw readings are not.
	w = ts.request(t, http.MethodGet, "/api/affect/latest?participant_id=P001", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after reset, got %d", w.Code)
	}
	w = ts.request(t, http.MethodGet, "/api/readings/recent?participant_id=P001", "")
	var recent map[string]interface{}
	decodeJSON(t, w, &recent)
	if recent["count"] != float64(3) {
		t.Errorf("Expected readings to survive reset, got %v", recent["count"])
	}

	// Adaptation restarts from the surviving readings.
	runInference(t, ts, "P001")
}

func TestResetUnknownParticipant(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodPost, "/api/participants/P404/reset", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestUnknownParticipantAction(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodPost, "/api/participants/P001/frobnicate", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestDeleteParticipant(t *testing.T) {
	ts := setupTestServer(t)

	seedReadings(t, ts, "P001", 70)

	w := ts.request(t, http.MethodDelete, "/api/participants/P001", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	decodeJSON(t, w, &resp)
	if resp["status"] != "deleted" {
		t.Errorf("Expected status deleted, got %q", resp["status"])
	}

	w = ts.request(t, http.MethodGet, "/api/participants/P001", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}
	w = ts.request(t, http.MethodGet, "/api/readings/recent?participant_id=P001", "")
	var recent map[string]interface{}
	decodeJSON(t, w, &recent)
	if recent["count"] != float64(0) {
		t.Errorf("Expected readings removed with participant, got %v", recent["count"])
	}
}
