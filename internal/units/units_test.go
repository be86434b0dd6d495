package units

import (
	"math"
	"testing"

	"github.com/halcyon-health/affect.report/internal/affect"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name     string
		metric   affect.MetricType
		expected string
	}{
		{"heart rate", affect.MetricHeartRate, BPM},
		{"rr interval", affect.MetricRRInterval, MS},
		{"steps", affect.MetricSteps, Count},
		{"sleep stage", affect.MetricSleepStage, Stage},
		{"skin temp", affect.MetricSkinTemp, Celsius},
		{"breathing rate", affect.MetricBreathingRate, BRPM},
		{"spo2", affect.MetricSpO2, Percent},
		{"unknown metric", affect.MetricType("eda"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Canonical(tt.metric)
			if result != tt.expected {
				t.Errorf("Canonical(%s) = %q, want %q", tt.metric, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		metric   affect.MetricType
		unit     string
		expected bool
	}{
		{"empty unit means canonical", affect.MetricHeartRate, "", true},
		{"canonical bpm", affect.MetricHeartRate, BPM, true},
		{"wrong unit for heart rate", affect.MetricHeartRate, MS, false},
		{"fahrenheit accepted for skin temp", affect.MetricSkinTemp, Fahrenheit, true},
		{"seconds accepted for rr", affect.MetricRRInterval, Seconds, true},
		{"seconds rejected for heart rate", affect.MetricHeartRate, Seconds, false},
		{"case sensitive", affect.MetricHeartRate, "BPM", false},
		{"unknown metric accepts empty", affect.MetricType("eda"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.metric, tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s, %q) = %v, want %v", tt.metric, tt.unit, result, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		metric    affect.MetricType
		value     float64
		unit      string
		wantValue float64
		wantUnit  string
	}{
		{"empty unit becomes canonical", affect.MetricHeartRate, 72.0, "", 72.0, BPM},
		{"canonical passes through", affect.MetricHeartRate, 72.0, BPM, 72.0, BPM},
		{"fahrenheit to celsius", affect.MetricSkinTemp, 98.6, Fahrenheit, 37.0, Celsius},
		{"freezing point", affect.MetricSkinTemp, 32.0, Fahrenheit, 0.0, Celsius},
		{"rr seconds to ms", affect.MetricRRInterval, 0.85, Seconds, 850.0, MS},
		{"unknown unit passes through", affect.MetricHeartRate, 72.0, "hz", 72.0, "hz"},
		{"unknown metric passes through", affect.MetricType("eda"), 3.2, "microsiemens", 3.2, "microsiemens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, unit := Normalize(tt.metric, tt.value, tt.unit)
			if math.Abs(value-tt.wantValue) > 0.0001 {
				t.Errorf("Normalize(%s, %f, %q) value = %f, want %f", tt.metric, tt.value, tt.unit, value, tt.wantValue)
			}
			if unit != tt.wantUnit {
				t.Errorf("Normalize(%s, %f, %q) unit = %q, want %q", tt.metric, tt.value, tt.unit, unit, tt.wantUnit)
			}
		})
	}
}

func TestValidUnits(t *testing.T) {
	tests := []struct {
		name     string
		metric   affect.MetricType
		expected []string
	}{
		{"skin temp has alternate", affect.MetricSkinTemp, []string{Celsius, Fahrenheit}},
		{"rr has alternate", affect.MetricRRInterval, []string{MS, Seconds}},
		{"heart rate canonical only", affect.MetricHeartRate, []string{BPM}},
		{"unknown metric has none", affect.MetricType("eda"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidUnits(tt.metric)
			if len(result) != len(tt.expected) {
				t.Fatalf("ValidUnits(%s) = %v, want %v", tt.metric, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("ValidUnits(%s)[%d] = %q, want %q", tt.metric, i, result[i], tt.expected[i])
				}
			}
		})
	}
}
