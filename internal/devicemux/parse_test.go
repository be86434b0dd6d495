package devicemux

import (
	"testing"

	"github.com/halcyon-health/affect.report/internal/affect"
)

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"single channel", "HR:72", EventTypeVitals},
		{"multi channel", "HR:72.4,RR:812,SPO2:98", EventTypeVitals},
		{"lowercase channel", "hr:72", EventTypeVitals},
		{"leading whitespace", "  TEMP:33.1", EventTypeVitals},
		{"status JSON", `{"fw":"1.4.2","battery":87}`, EventTypeStatus},
		{"unknown channel", "XYZ:1", EventTypeUnknown},
		{"plain text", "BOOT OK", EventTypeUnknown},
		{"empty", "", EventTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyPayload(tt.payload); got != tt.want {
				t.Errorf("ClassifyPayload(%q) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

func TestParseVitalsLine(t *testing.T) {
	readings, err := ParseVitalsLine("P001", "HR:72.4,RR:812,BR:14.2,TEMP:33.1,SPO2:98")
	if err != nil {
		t.Fatalf("ParseVitalsLine returned error: %v", err)
	}
	if len(readings) != 5 {
		t.Fatalf("Expected 5 readings, got %d", len(readings))
	}

	for _, r := range readings {
		if r.ParticipantID != "P001" {
			t.Errorf("Expected participant P001, got %s", r.ParticipantID)
		}
		if r.Unit != "" {
			t.Errorf("Expected empty unit (canonical), got %q", r.Unit)
		}
		if !r.Timestamp.IsZero() {
			t.Error("Expected zero timestamp, stamping belongs to ingest")
		}
	}

	if readings[0].MetricType != affect.MetricHeartRate {
		t.Errorf("Expected heart_rate first, got %s", readings[0].MetricType)
	}
	if readings[0].Value != 72.4 {
		t.Errorf("Expected value 72.4, got %f", readings[0].Value)
	}
	if readings[4].MetricType != affect.MetricSpO2 {
		t.Errorf("Expected spo2 last, got %s", readings[4].MetricType)
	}
}

func TestParseVitalsLineSingleChannel(t *testing.T) {
	readings, err := ParseVitalsLine("P002", "SLEEP:2")
	if err != nil {
		t.Fatalf("ParseVitalsLine returned error: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	if readings[0].MetricType != affect.MetricSleepStage {
		t.Errorf("Expected sleep_stage, got %s", readings[0].MetricType)
	}
	if readings[0].Value != 2 {
		t.Errorf("Expected value 2, got %f", readings[0].Value)
	}
}

func TestParseVitalsLineSkipsUnknownChannels(t *testing.T) {
	readings, err := ParseVitalsLine("P001", "HR:70,EDA:0.41,SPO2:97")
	if err != nil {
		t.Fatalf("ParseVitalsLine returned error: %v", err)
	}
	// EDA is not a channel we model; the rest of the line still parses.
	if len(readings) != 2 {
		t.Fatalf("Expected 2 readings with unknown channel skipped, got %d", len(readings))
	}
}

func TestParseVitalsLineBadValue(t *testing.T) {
	if _, err := ParseVitalsLine("P001", "HR:70,TEMP:warm"); err == nil {
		t.Error("Expected error for non-numeric value")
	}
}

func TestParseVitalsLineMalformedField(t *testing.T) {
	if _, err := ParseVitalsLine("P001", "HR:70,JUNK"); err == nil {
		t.Error("Expected error for field without separator")
	}
}

func TestParseVitalsLineNothingRecognized(t *testing.T) {
	if _, err := ParseVitalsLine("P001", "EDA:0.41,GSR:12"); err == nil {
		t.Error("Expected error when no channels are recognized")
	}
}
