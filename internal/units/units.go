// Package units provides shared constants, validation and conversion for
// physiological measurement units, plus the timezone catalog used for
// participant-local scheduling.
package units

import (
	"github.com/halcyon-health/affect.report/internal/affect"
)

// Unit constants
const (
	BPM        = "bpm"        // beats per minute
	BRPM       = "brpm"       // breaths per minute
	MS         = "ms"         // milliseconds
	Seconds    = "s"          // seconds
	Count      = "count"      // dimensionless tally
	Stage      = "stage"      // sleep stage code
	Celsius    = "celsius"    // degrees Celsius
	Fahrenheit = "fahrenheit" // degrees Fahrenheit
	Percent    = "percent"    // 0-100
)

// Canonical returns the unit readings of a metric are stored in.
// Database stores every reading in its canonical unit; ingest converts.
func Canonical(metric affect.MetricType) string {
	switch metric {
	case affect.MetricHeartRate:
		return BPM
	case affect.MetricRRInterval:
		return MS
	case affect.MetricSteps:
		return Count
	case affect.MetricSleepStage:
		return Stage
	case affect.MetricSkinTemp:
		return Celsius
	case affect.MetricBreathingRate:
		return BRPM
	case affect.MetricSpO2:
		return Percent
	default:
		return ""
	}
}

// ValidUnits returns the units accepted on the wire for a metric: the
// canonical unit plus any convertible alternates. Empty unit on a reading
// is treated as canonical.
func ValidUnits(metric affect.MetricType) []string {
	canonical := Canonical(metric)
	if canonical == "" {
		return nil
	}
	switch metric {
	case affect.MetricSkinTemp:
		return []string{Celsius, Fahrenheit}
	case affect.MetricRRInterval:
		return []string{MS, Seconds}
	default:
		return []string{canonical}
	}
}

// IsValid checks if the given unit is acceptable for the metric. The empty
// string is valid and means canonical.
func IsValid(metric affect.MetricType, unit string) bool {
	if unit == "" {
		return true
	}
	for _, validUnit := range ValidUnits(metric) {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// Normalize converts a value to the metric's canonical unit and returns the
// converted value with the canonical unit name. Unknown units pass through
// unchanged so unrecognized metrics still ingest.
func Normalize(metric affect.MetricType, value float64, unit string) (float64, string) {
	canonical := Canonical(metric)
	if canonical == "" {
		return value, unit
	}
	if unit == "" || unit == canonical {
		return value, canonical
	}

	switch {
	case metric == affect.MetricSkinTemp && unit == Fahrenheit:
		return (value - 32.0) * 5.0 / 9.0, Celsius
	case metric == affect.MetricRRInterval && unit == Seconds:
		return value * 1000.0, MS
	default:
		return value, unit
	}
}
