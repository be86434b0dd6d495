package devicemux

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/halcyon-health/affect.report/internal/affect"
)

const (
	EventTypeVitals  = "vitals"
	EventTypeStatus  = "status"
	EventTypeUnknown = "unknown"
)

// channelTokens maps the board's line-protocol channel names to metric
// types. Channels the board streams but we do not model are skipped by the
// parser rather than rejected.
var channelTokens = map[string]affect.MetricType{
	"HR":    affect.MetricHeartRate,
	"RR":    affect.MetricRRInterval,
	"BR":    affect.MetricBreathingRate,
	"TEMP":  affect.MetricSkinTemp,
	"SPO2":  affect.MetricSpO2,
	"STEPS": affect.MetricSteps,
	"SLEEP": affect.MetricSleepStage,
}

// ClassifyPayload inspects a payload string and returns a simple event type
// token. Vitals lines are CHANNEL:VALUE pairs; status responses are JSON
// objects the board emits after CFG? or on mode changes.
func ClassifyPayload(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, "{") {
		return EventTypeStatus
	}

	first, _, found := strings.Cut(trimmed, ":")
	if found {
		if _, ok := channelTokens[strings.ToUpper(strings.TrimSpace(first))]; ok {
			return EventTypeVitals
		}
	}
	return EventTypeUnknown
}

// ParseVitalsLine parses one CHANNEL:VALUE[,CHANNEL:VALUE...] line into
// readings attributed to the given participant. Timestamps and units are
// left to the ingest path, which stamps arrival time and canonical units.
// Unrecognized channels are skipped; a malformed value fails the whole line
// so a garbled transmission never half-ingests.
func ParseVitalsLine(participantID, line string) ([]affect.SensorReading, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")

	var readings []affect.SensorReading
	for _, field := range fields {
		token, raw, found := strings.Cut(field, ":")
		if !found {
			return nil, fmt.Errorf("malformed field %q: expected CHANNEL:VALUE", field)
		}

		metric, ok := channelTokens[strings.ToUpper(strings.TrimSpace(token))]
		if !ok {
			continue
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: bad value: %w", field, err)
		}

		readings = append(readings, affect.SensorReading{
			ParticipantID: participantID,
			MetricType:    metric,
			Value:         value,
		})
	}

	if len(readings) == 0 {
		return nil, fmt.Errorf("no recognized channels in line %q", line)
	}
	return readings, nil
}
