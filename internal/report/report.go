// Package report renders offline affect reports: a dimension timeline
// plot with the participant's own EMA ratings overlaid, plus summary and
// calibration statistics over a date range.
package report

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/security"
)

// AssociationWindow bounds how far an EMA label may sit from an inferred
// state and still count as rating it.
const AssociationWindow = 30 * time.Minute

// queryLimit covers several days of 5-minute sweep output.
const queryLimit = 10000

// Source is the slice of the store a report reads.
type Source interface {
	AffectHistory(ctx context.Context, participantID string, since, until time.Time, limit int) ([]affect.AffectState, error)
	EMALabels(ctx context.Context, participantID string, since, until time.Time, limit int) ([]affect.EMALabel, error)
	ListBaselines(ctx context.Context, participantID string) ([]affect.Baseline, error)
}

// Options selects what to report on and where output lands.
type Options struct {
	ParticipantID string
	// Since and Until bound the range. Zero Until means now; zero Since
	// means 24h before Until.
	Since time.Time
	Until time.Time
	// OutputDir receives the plot file. It is created if absent.
	OutputDir string
}

// DimensionStats summarises one inferred dimension over the range.
type DimensionStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// CalibrationRow compares one dimension's inferred values against paired
// EMA ratings.
type CalibrationRow struct {
	Dimension   string
	Pairs       int
	MAE         float64
	Correlation float64
}

// Summary is the computed report.
type Summary struct {
	ParticipantID string
	Since         time.Time
	Until         time.Time
	States        int
	Labels        int
	PairedLabels  int
	Dimensions    map[string]DimensionStats
	Calibration   []CalibrationRow
	Baselines     []affect.Baseline
	PlotFile      string
}

// Generate runs the queries, computes statistics and writes the timeline
// plot. The returned summary references the written plot file.
func Generate(ctx context.Context, src Source, opts Options) (*Summary, error) {
	if opts.ParticipantID == "" {
		return nil, fmt.Errorf("participant ID is required")
	}
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	until := opts.Until
	if until.IsZero() {
		until = time.Now().UTC()
	}
	since := opts.Since
	if since.IsZero() {
		since = until.Add(-24 * time.Hour)
	}
	if !since.Before(until) {
		return nil, fmt.Errorf("since (%v) must precede until (%v)", since, until)
	}

	states, err := src.AffectHistory(ctx, opts.ParticipantID, since, until, queryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load affect history: %w", err)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("no inferred states for %s in [%v, %v]", opts.ParticipantID, since, until)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Timestamp.Before(states[j].Timestamp) })

	labels, err := src.EMALabels(ctx, opts.ParticipantID, since, until, queryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load EMA labels: %w", err)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Timestamp.Before(labels[j].Timestamp) })

	baselines, err := src.ListBaselines(ctx, opts.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load baselines: %w", err)
	}

	summary := &Summary{
		ParticipantID: opts.ParticipantID,
		Since:         since,
		Until:         until,
		States:        len(states),
		Labels:        len(labels),
		Dimensions:    dimensionStats(states),
		Baselines:     baselines,
	}
	summary.Calibration, summary.PairedLabels = calibrate(states, labels)

	plotFile, err := renderTimeline(states, labels, opts.ParticipantID, opts.OutputDir)
	if err != nil {
		return nil, err
	}
	summary.PlotFile = plotFile

	return summary, nil
}

func dimensionValue(s *affect.AffectState, dim string) float64 {
	switch dim {
	case "arousal":
		return s.Arousal
	case "valence":
		return s.Valence
	default:
		return s.Stress
	}
}

func labelValue(l *affect.EMALabel, dim string) float64 {
	switch dim {
	case "arousal":
		return l.Arousal
	case "valence":
		return l.Valence
	default:
		return l.Stress
	}
}

var dimensions = []string{"arousal", "valence", "stress"}

func dimensionStats(states []affect.AffectState) map[string]DimensionStats {
	out := make(map[string]DimensionStats, len(dimensions))
	for _, dim := range dimensions {
		values := make([]float64, len(states))
		min, max := math.Inf(1), math.Inf(-1)
		for i := range states {
			v := dimensionValue(&states[i], dim)
			values[i] = v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		out[dim] = DimensionStats{
			Mean:   stat.Mean(values, nil),
			StdDev: stat.StdDev(values, nil),
			Min:    min,
			Max:    max,
		}
	}
	return out
}

// calibrate pairs each label with the nearest state inside the association
// window and scores agreement per dimension.
func calibrate(states []affect.AffectState, labels []affect.EMALabel) ([]CalibrationRow, int) {
	type pair struct {
		state *affect.AffectState
		label *affect.EMALabel
	}
	var pairs []pair
	for i := range labels {
		if s := nearestState(states, labels[i].Timestamp); s != nil {
			pairs = append(pairs, pair{state: s, label: &labels[i]})
		}
	}
	if len(pairs) == 0 {
		return nil, 0
	}

	rows := make([]CalibrationRow, 0, len(dimensions))
	for _, dim := range dimensions {
		inferred := make([]float64, len(pairs))
		rated := make([]float64, len(pairs))
		var absErr float64
		for i, p := range pairs {
			inferred[i] = dimensionValue(p.state, dim)
			rated[i] = labelValue(p.label, dim)
			absErr += math.Abs(inferred[i] - rated[i])
		}
		row := CalibrationRow{
			Dimension: dim,
			Pairs:     len(pairs),
			MAE:       absErr / float64(len(pairs)),
		}
		// Correlation needs variance on both sides; a flat series makes
		// it undefined.
		if len(pairs) >= 2 && stat.Variance(inferred, nil) > 0 && stat.Variance(rated, nil) > 0 {
			row.Correlation = stat.Correlation(inferred, rated, nil)
		} else {
			row.Correlation = math.NaN()
		}
		rows = append(rows, row)
	}
	return rows, len(pairs)
}

// nearestState returns the state closest to at, or nil when none fall
// inside the association window. States must be sorted ascending.
func nearestState(states []affect.AffectState, at time.Time) *affect.AffectState {
	idx := sort.Search(len(states), func(i int) bool {
		return !states[i].Timestamp.Before(at)
	})

	var best *affect.AffectState
	bestDelta := AssociationWindow + 1
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(states) {
			continue
		}
		delta := states[i].Timestamp.Sub(at)
		if delta < 0 {
			delta = -delta
		}
		if delta <= AssociationWindow && delta < bestDelta {
			best = &states[i]
			bestDelta = delta
		}
	}
	return best
}

var dimensionColors = map[string]color.Color{
	"arousal": color.RGBA{R: 220, G: 50, B: 47, A: 255},
	"valence": color.RGBA{R: 38, G: 139, B: 210, A: 255},
	"stress":  color.RGBA{R: 133, G: 153, B: 0, A: 255},
}

// renderTimeline writes one PNG with the three dimension lines and the EMA
// ratings as cross glyphs in the matching color.
func renderTimeline(states []affect.AffectState, labels []affect.EMALabel, participantID, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	name := fmt.Sprintf("affect_%s.png", security.SanitizeFilename(participantID))
	outPath := filepath.Join(outputDir, name)
	if err := security.ValidatePathWithinDirectory(outPath, outputDir); err != nil {
		return "", fmt.Errorf("unsafe output path: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Affect dimensions - %s", participantID)
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Dimension value"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02 15:04"}
	p.Y.Min = -1.1
	p.Y.Max = 1.1

	for _, dim := range dimensions {
		pts := make(plotter.XYs, len(states))
		for i := range states {
			pts[i] = plotter.XY{
				X: float64(states[i].Timestamp.Unix()),
				Y: dimensionValue(&states[i], dim),
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", err
		}
		line.Color = dimensionColors[dim]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(dim, line)

		if len(labels) == 0 {
			continue
		}
		labelPts := make(plotter.XYs, len(labels))
		for i := range labels {
			labelPts[i] = plotter.XY{
				X: float64(labels[i].Timestamp.Unix()),
				Y: labelValue(&labels[i], dim),
			}
		}
		scatter, err := plotter.NewScatter(labelPts)
		if err != nil {
			return "", err
		}
		scatter.GlyphStyle.Shape = draw.CrossGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(3)
		scatter.GlyphStyle.Color = dimensionColors[dim]
		p.Add(scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, outPath); err != nil {
		return "", fmt.Errorf("save timeline plot: %w", err)
	}

	return outPath, nil
}
