// Package synth generates plausible physiological streams for demos, soak
// tests and report development. The model layers sleep, activity bouts and
// stress episodes over a diurnal heart-rate rhythm, with the correlated
// RR-interval, breathing, skin-temperature and SpO2 responses for each.
package synth

import (
	"math"
	"math/rand"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/units"
)

// Episode is one bounded activity or stress window within a run.
type Episode struct {
	Start time.Time
	End   time.Time
}

func (e Episode) contains(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// effort returns the ramp position of t inside the episode: 0 at the
// edges, 1 at the midpoint. Zero outside.
func (e Episode) effort(t time.Time) float64 {
	if !e.contains(t) {
		return 0
	}
	frac := t.Sub(e.Start).Seconds() / e.End.Sub(e.Start).Seconds()
	return math.Sin(math.Pi * frac)
}

// Params configures a synthetic run. Zero values take the documented
// defaults.
type Params struct {
	ParticipantID string
	// Seed fixes the random source so runs are reproducible. Zero seeds
	// from the start time.
	Seed int64
	// Start is the timestamp of the first sample. Zero means 24h ago.
	Start time.Time
	// Duration of the run. Zero means 24h.
	Duration time.Duration
	// Interval between samples. Zero means one minute.
	Interval time.Duration
	// ActivityBouts is how many exercise windows to place in waking hours.
	ActivityBouts int
	// StressEpisodes is how many acute stress windows to place.
	StressEpisodes int
}

// Generator emits one tick of correlated readings per Next call until the
// configured duration is exhausted.
type Generator struct {
	params   Params
	rng      *rand.Rand
	cursor   time.Time
	end      time.Time
	activity []Episode
	stress   []Episode
}

// NewGenerator builds a generator with episodes already placed.
func NewGenerator(p Params) *Generator {
	if p.ParticipantID == "" {
		p.ParticipantID = "demo"
	}
	if p.Duration <= 0 {
		p.Duration = 24 * time.Hour
	}
	if p.Interval <= 0 {
		p.Interval = time.Minute
	}
	if p.Start.IsZero() {
		p.Start = time.Now().UTC().Add(-p.Duration).Truncate(time.Minute)
	}
	if p.Seed == 0 {
		p.Seed = p.Start.Unix()
	}

	g := &Generator{
		params: p,
		rng:    rand.New(rand.NewSource(p.Seed)),
		cursor: p.Start,
		end:    p.Start.Add(p.Duration),
	}
	g.activity = g.placeEpisodes(p.ActivityBouts, 20*time.Minute, 45*time.Minute)
	g.stress = g.placeEpisodes(p.StressEpisodes, 10*time.Minute, 30*time.Minute)
	return g
}

// placeEpisodes scatters n windows across the run, preferring waking
// hours. Placement gives up on the daytime constraint after enough tries
// so short overnight runs still get their episodes.
func (g *Generator) placeEpisodes(n int, minLen, maxLen time.Duration) []Episode {
	episodes := make([]Episode, 0, n)
	for i := 0; i < n; i++ {
		length := minLen + time.Duration(g.rng.Int63n(int64(maxLen-minLen)))
		span := g.params.Duration - length
		if span <= 0 {
			break
		}
		var start time.Time
		for attempt := 0; ; attempt++ {
			start = g.params.Start.Add(time.Duration(g.rng.Int63n(int64(span))))
			h := start.Hour()
			if (h >= 8 && h < 21) || attempt >= 20 {
				break
			}
		}
		episodes = append(episodes, Episode{Start: start, End: start.Add(length)})
	}
	return episodes
}

// ActivityWindows returns the placed exercise episodes.
func (g *Generator) ActivityWindows() []Episode { return g.activity }

// StressWindows returns the placed stress episodes.
func (g *Generator) StressWindows() []Episode { return g.stress }

func asleep(t time.Time) bool {
	h := t.Hour()
	return h < 7 || h >= 23
}

// sleepStage approximates a 90-minute sleep cycle: descend through light
// into deep sleep, back up, then a REM block.
func sleepStage(t time.Time) float64 {
	cycle := math.Mod(float64(t.Hour()*60+t.Minute()), 90) / 90
	switch {
	case cycle < 0.15:
		return 1 // light
	case cycle < 0.35:
		return 2 // descending
	case cycle < 0.6:
		return 3 // deep
	case cycle < 0.75:
		return 2
	default:
		return 4 // REM
	}
}

// Next returns the readings for the current tick and advances the cursor.
// It returns nil once the run is exhausted.
func (g *Generator) Next() []affect.SensorReading {
	if !g.cursor.Before(g.end) {
		return nil
	}
	t := g.cursor
	g.cursor = g.cursor.Add(g.params.Interval)

	hour := float64(t.Hour()) + float64(t.Minute())/60

	// Circadian carrier: trough around 03:00, peak mid-afternoon.
	hr := 64 + 7*math.Sin(2*math.Pi*(hour-9)/24)
	br := 14.0
	temp := 33.5 + 0.4*math.Sin(2*math.Pi*(hour-19)/24)
	spo2 := 97.5
	rrJitter := 25.0
	steps := 0.0

	night := asleep(t)
	if night {
		hr -= 8
		br = 12
		spo2 -= 1
		rrJitter = 35 // vagal tone raises beat-to-beat variability
	} else if g.rng.Float64() < 0.25 {
		steps = float64(g.rng.Intn(30))
	}

	for _, e := range g.activity {
		effort := e.effort(t)
		if effort == 0 {
			continue
		}
		hr += 45 * effort
		br += 10 * effort
		temp += 0.6 * effort
		spo2 -= 1 * effort
		steps = math.Max(steps, 110*effort+float64(g.rng.Intn(15)))
	}
	for _, e := range g.stress {
		effort := e.effort(t)
		if effort == 0 {
			continue
		}
		hr += 12 * effort
		br += 4 * effort
		temp -= 0.4 * effort // peripheral vasoconstriction
		rrJitter *= 1 - 0.6*effort
	}

	hr += g.rng.NormFloat64() * 1.5
	br += g.rng.NormFloat64() * 0.6
	temp += g.rng.NormFloat64() * 0.05
	spo2 += g.rng.NormFloat64() * 0.4
	if spo2 > 100 {
		spo2 = 100
	}
	rr := 60000/hr + g.rng.NormFloat64()*rrJitter

	readings := []affect.SensorReading{
		g.reading(t, affect.MetricHeartRate, round(hr, 1)),
		g.reading(t, affect.MetricRRInterval, round(rr, 0)),
		g.reading(t, affect.MetricBreathingRate, round(br, 1)),
		g.reading(t, affect.MetricSkinTemp, round(temp, 2)),
		g.reading(t, affect.MetricSpO2, round(spo2, 0)),
		g.reading(t, affect.MetricSteps, round(steps, 0)),
	}
	if night {
		readings = append(readings, g.reading(t, affect.MetricSleepStage, sleepStage(t)))
	}
	return readings
}

// All drains the generator.
func (g *Generator) All() []affect.SensorReading {
	var out []affect.SensorReading
	for batch := g.Next(); batch != nil; batch = g.Next() {
		out = append(out, batch...)
	}
	return out
}

func (g *Generator) reading(t time.Time, metric affect.MetricType, value float64) affect.SensorReading {
	return affect.SensorReading{
		ParticipantID: g.params.ParticipantID,
		MetricType:    metric,
		Value:         value,
		Unit:          units.Canonical(metric),
		Timestamp:     t,
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
