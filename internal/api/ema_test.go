package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
)

func TestCreateEMALabel(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodPost, "/api/ema",
		`{"participant_id": "P001", "arousal": 0.5, "valence": -0.2, "stress": 0.7,
		  "emotion_tag": "stressed", "context_note": "before a meeting"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var label affect.EMALabel
	decodeJSON(t, w, &label)
	if label.ID == "" {
		t.Error("Expected the label to have an ID assigned")
	}
	if label.Timestamp.IsZero() {
		t.Error("Expected the label to have a timestamp assigned")
	}
	if label.ContextNote != "before a meeting" {
		t.Errorf("Expected context note to round-trip, got %q", label.ContextNote)
	}
}

func TestCreateEMALabelRequiresParticipant(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodPost, "/api/ema",
		`{"arousal": 0.5, "valence": 0.1, "stress": 0.3}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCreateEMALabelBounds(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"arousal too high", `{"participant_id": "P001", "arousal": 1.5}`, "arousal"},
		{"valence too low", `{"participant_id": "P001", "valence": -2}`, "valence"},
		{"stress too high", `{"participant_id": "P001", "stress": 1.2}`, "stress"},
		{"stress negative", `{"participant_id": "P001", "stress": -0.1}`, "stress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.request(t, http.MethodPost, "/api/ema", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", w.Code)
			}
			var body map[string]string
			decodeJSON(t, w, &body)
			if !strings.Contains(body["error"], tt.want) {
				t.Errorf("Expected error to mention %s, got %q", tt.want, body["error"])
			}
		})
	}
}

func TestListEMALabels(t *testing.T) {
	ts := setupTestServer(t)

	older := time.Now().UTC().Add(-2 * time.Hour)
	newer := time.Now().UTC().Add(-1 * time.Hour)
	for _, at := range []time.Time{older, newer} {
		w := ts.request(t, http.MethodPost, "/api/ema", fmt.Sprintf(
			`{"participant_id": "P001", "arousal": 0.1, "valence": 0.4, "stress": 0.2, "timestamp": %q}`,
			at.Format(time.RFC3339)))
		if w.Code != http.StatusCreated {
			t.Fatalf("Failed to create label: %d", w.Code)
		}
	}

	w := ts.request(t, http.MethodGet, "/api/ema?participant_id=P001", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	decodeJSON(t, w, &resp)
	if resp["count"] != float64(2) {
		t.Errorf("Expected 2 labels, got %v", resp["count"])
	}

	cutoff := time.Now().UTC().Add(-90 * time.Minute).Format(time.RFC3339)
	w = ts.request(t, http.MethodGet, "/api/ema?participant_id=P001&since="+cutoff, "")
	decodeJSON(t, w, &resp)
	if resp["count"] != float64(1) {
		t.Errorf("Expected 1 label after since filter, got %v", resp["count"])
	}
}

func TestListEMALabelsRequiresParticipant(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.request(t, http.MethodGet, "/api/ema", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
