package affect

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultWindowSeconds is the inference window length when the caller does
// not specify one.
const DefaultWindowSeconds = 300

// Sleep stage weights for the efficiency ratio. Wake contributes nothing,
// light sleep partial credit, deep and REM full credit.
var sleepStageWeights = map[int]float64{
	SleepStageWake:  0.0,
	SleepStageLight: 0.8,
	SleepStageDeep:  1.0,
	SleepStageREM:   1.0,
}

// ExtractFeatures summarizes the readings that fall inside [start, end) into
// a sparse feature vector. Metrics absent from the window are omitted from
// the map entirely; a zero value is a real observation, not a placeholder.
//
// The function is pure: identical inputs always produce identical vectors,
// and no state is touched. Readings outside the window are ignored so
// callers may pass a superset.
//
// Returns *InsufficientDataError when zero readings fall inside the window.
func ExtractFeatures(participantID string, start, end time.Time, readings []SensorReading) (*FeatureVector, error) {
	byMetric := make(map[MetricType][]SensorReading)
	total := 0
	for _, r := range readings {
		if r.Timestamp.Before(start) || !r.Timestamp.Before(end) {
			continue
		}
		byMetric[r.MetricType] = append(byMetric[r.MetricType], r)
		total++
	}
	if total == 0 {
		return nil, &InsufficientDataError{ParticipantID: participantID, WindowStart: start, WindowEnd: end}
	}

	// Successive-difference and slope features need arrival order. Sort
	// copies so the input slice is never mutated.
	for m := range byMetric {
		sort.SliceStable(byMetric[m], func(i, j int) bool {
			return byMetric[m][i].Timestamp.Before(byMetric[m][j].Timestamp)
		})
	}

	fv := &FeatureVector{
		ParticipantID: participantID,
		WindowStart:   start,
		WindowEnd:     end,
		Features:      make(map[string]float64),
		ReadingCount:  total,
	}

	if hr := byMetric[MetricHeartRate]; len(hr) > 0 {
		fv.Features[FeatureHRMean] = stat.Mean(values(hr), nil)
		if slope, ok := trendSlope(start, hr); ok {
			fv.Features[FeatureHRSlope] = slope
		}
	}
	if rr := byMetric[MetricRRInterval]; len(rr) >= 2 {
		fv.Features[FeatureHRVRMSSD] = rmssd(values(rr))
	}
	if steps := byMetric[MetricSteps]; len(steps) > 0 {
		sum := 0.0
		for _, r := range steps {
			sum += r.Value
		}
		fv.Features[FeatureActivityLevel] = sum
	}
	if stages := byMetric[MetricSleepStage]; len(stages) > 0 {
		fv.Features[FeatureSleepEfficiency] = sleepEfficiency(stages)
	}
	if temps := byMetric[MetricSkinTemp]; len(temps) > 0 {
		fv.Features[FeatureSkinTempMean] = stat.Mean(values(temps), nil)
	}
	if br := byMetric[MetricBreathingRate]; len(br) > 0 {
		fv.Features[FeatureBreathingRate] = stat.Mean(values(br), nil)
	}
	if sp := byMetric[MetricSpO2]; len(sp) > 0 {
		fv.Features[FeatureSpO2Mean] = stat.Mean(values(sp), nil)
	}

	return fv, nil
}

func values(readings []SensorReading) []float64 {
	vs := make([]float64, len(readings))
	for i, r := range readings {
		vs[i] = r.Value
	}
	return vs
}

// trendSlope fits value against seconds-since-window-start by least squares
// and returns the per-second slope. Needs at least two readings at distinct
// timestamps; otherwise reports ok=false and the feature is omitted.
func trendSlope(start time.Time, readings []SensorReading) (float64, bool) {
	if len(readings) < 2 {
		return 0, false
	}
	ts := make([]float64, len(readings))
	vs := make([]float64, len(readings))
	distinct := false
	for i, r := range readings {
		ts[i] = r.Timestamp.Sub(start).Seconds()
		vs[i] = r.Value
		if i > 0 && ts[i] != ts[0] {
			distinct = true
		}
	}
	if !distinct {
		return 0, false
	}
	_, slope := stat.LinearRegression(ts, vs, nil, false)
	return slope, true
}

// rmssd is the root mean square of successive differences, the standard
// short-window HRV index over beat-to-beat intervals.
func rmssd(intervals []float64) float64 {
	sq := make([]float64, 0, len(intervals)-1)
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sq = append(sq, d*d)
	}
	return math.Sqrt(stat.Mean(sq, nil))
}

// sleepEfficiency is the stage-weighted fraction of sleep epochs spent
// asleep. Each reading is one epoch; its value carries the stage code.
// Unknown stage codes count as wake.
func sleepEfficiency(stages []SensorReading) float64 {
	sum := 0.0
	for _, r := range stages {
		sum += sleepStageWeights[int(r.Value)]
	}
	return sum / float64(len(stages))
}
