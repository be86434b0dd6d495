// Package affect implements the affective-state inference pipeline: feature
// extraction over windows of wearable sensor readings, per-participant EWMA
// baseline tracking, and deviation-weighted scoring into arousal, valence and
// stress estimates with confidence.
package affect

import "time"

// MetricType identifies a physiological signal channel on the wire and in storage.
type MetricType string

const (
	MetricHeartRate     MetricType = "heart_rate"     // beats per minute
	MetricRRInterval    MetricType = "rr_interval"    // milliseconds between beats
	MetricSteps         MetricType = "steps"          // step count per sample period
	MetricSleepStage    MetricType = "sleep_stage"    // 0=wake 1=light 2=deep 3=rem
	MetricSkinTemp      MetricType = "skin_temp"      // degrees Celsius
	MetricBreathingRate MetricType = "breathing_rate" // breaths per minute
	MetricSpO2          MetricType = "spo2"           // percent saturation
)

// KnownMetricTypes lists every metric the extractor understands, in a stable order.
var KnownMetricTypes = []MetricType{
	MetricHeartRate,
	MetricRRInterval,
	MetricSteps,
	MetricSleepStage,
	MetricSkinTemp,
	MetricBreathingRate,
	MetricSpO2,
}

// IsKnownMetricType reports whether m is a metric the pipeline can use.
// Unknown metrics are still ingested and rule-checked; they just never
// contribute features.
func IsKnownMetricType(m MetricType) bool {
	for _, k := range KnownMetricTypes {
		if m == k {
			return true
		}
	}
	return false
}

// Sleep stage codes carried in the value field of sleep_stage readings.
const (
	SleepStageWake  = 0
	SleepStageLight = 1
	SleepStageDeep  = 2
	SleepStageREM   = 3
)

// SensorReading is one timestamped sample from a wearable channel.
// Readings are immutable once ingested; the pipeline only ever reads
// bounded windows of them.
type SensorReading struct {
	ID            string     `json:"id"`
	ParticipantID string     `json:"participant_id"`
	MetricType    MetricType `json:"metric_type"`
	Value         float64    `json:"value"`
	Unit          string     `json:"unit,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Feature names produced by the extractor. Absent keys in a FeatureVector
// mean "not observed in this window", never zero.
const (
	FeatureHRMean          = "hr_mean"
	FeatureHRSlope         = "hr_slope"
	FeatureHRVRMSSD        = "hrv_rmssd"
	FeatureActivityLevel   = "activity_level"
	FeatureSleepEfficiency = "sleep_efficiency"
	FeatureSkinTempMean    = "skin_temp_mean"
	FeatureBreathingRate   = "breathing_rate_mean"
	FeatureSpO2Mean        = "spo2_mean"
)

// KnownFeatures lists every feature the extractor can emit, in a stable order.
var KnownFeatures = []string{
	FeatureHRMean,
	FeatureHRSlope,
	FeatureHRVRMSSD,
	FeatureActivityLevel,
	FeatureSleepEfficiency,
	FeatureSkinTempMean,
	FeatureBreathingRate,
	FeatureSpO2Mean,
}

// FeatureVector is the windowed summary of one participant's readings.
// It is derived and ephemeral: recomputed per inference run, never stored
// on its own.
type FeatureVector struct {
	ParticipantID string             `json:"participant_id"`
	WindowStart   time.Time          `json:"window_start"`
	WindowEnd     time.Time          `json:"window_end"`
	Features      map[string]float64 `json:"features"`
	ReadingCount  int                `json:"reading_count"`
}

// Has reports whether the named feature was observed in this window.
func (fv *FeatureVector) Has(name string) bool {
	_, ok := fv.Features[name]
	return ok
}

// Baseline is the slowly-adapting personal norm for one (participant, feature)
// pair: an exponentially-weighted running mean and variance plus bookkeeping.
type Baseline struct {
	ParticipantID string    `json:"participant_id"`
	FeatureName   string    `json:"feature_name"`
	Mean          float64   `json:"mean"`
	Variance      float64   `json:"variance"`
	SampleCount   int64     `json:"sample_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

// EmotionLabel is a discrete category mapped from the (arousal, valence) plane.
type EmotionLabel string

const (
	EmotionCalm     EmotionLabel = "calm"
	EmotionContent  EmotionLabel = "content"
	EmotionExcited  EmotionLabel = "excited"
	EmotionStressed EmotionLabel = "stressed"
	EmotionNone     EmotionLabel = "" // labeling disabled or no category close enough
)

// AffectState is the output of one inference run. Arousal and valence are on
// [-1, 1], stress and confidence on [0, 1]. Previous states are history, never
// overwritten.
type AffectState struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Arousal       float64   `json:"arousal"`
	Valence       float64   `json:"valence"`
	Stress        float64   `json:"stress"`
	// Emotion is best-effort and may be empty when labeling is disabled or
	// no taxonomy category is within the configured distance.
	Emotion    EmotionLabel `json:"emotion,omitempty"`
	Confidence float64      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`

	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	// ContributingFeatures records, per feature present in the window, the
	// clamped deviation score that fed the dimensions.
	ContributingFeatures map[string]float64 `json:"contributing_features"`
}

// Bounds for affect dimensions. Inputs landing outside are clamped, never
// rejected: saturation is a normal operating condition.
const (
	ArousalMin = -1.0
	ArousalMax = 1.0
	ValenceMin = -1.0
	ValenceMax = 1.0
	StressMin  = 0.0
	StressMax  = 1.0
)

// EMALabel is a participant's own in-the-moment rating, used to calibrate and
// validate inferred states. Never required for inference.
type EMALabel struct {
	ID            string       `json:"id"`
	ParticipantID string       `json:"participant_id"`
	Arousal       float64      `json:"arousal"`
	Valence       float64      `json:"valence"`
	Stress        float64      `json:"stress"`
	EmotionTag    EmotionLabel `json:"emotion_tag,omitempty"`
	ContextNote   string       `json:"context_note,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// AlertSeverity grades monitoring-rule alerts.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// MonitoringRule is a declarative threshold check applied to each incoming
// reading of its metric type, independent of the affect pipeline.
type MonitoringRule struct {
	RuleID     string        `json:"rule_id"`
	MetricType MetricType    `json:"metric_type"`
	Condition  string        `json:"condition"` // boolean expression over `value`
	Severity   AlertSeverity `json:"severity"`
	// MessageTemplate may reference {metric} and {value}.
	MessageTemplate string `json:"message_template"`
	Enabled         bool   `json:"enabled"`
}

// Alert is emitted when a reading satisfies a rule's condition.
type Alert struct {
	ID            string        `json:"id"`
	RuleID        string        `json:"rule_id"`
	ParticipantID string        `json:"participant_id"`
	MetricType    MetricType    `json:"metric_type"`
	Value         float64       `json:"value"`
	Severity      AlertSeverity `json:"severity"`
	Message       string        `json:"message"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
