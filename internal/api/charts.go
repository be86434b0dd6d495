package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/halcyon-health/affect.report/internal/httputil"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// chartMaxStates caps how many history points one chart renders.
const chartMaxStates = 2000

// handleAffectChart renders an HTML line chart of a participant's affect
// dimensions over time using go-echarts. This is a debugging-only
// endpoint to eyeball pipeline output without a dashboard.
// Query params:
//   - participant_id (required)
//   - since, until (optional; default last 24h)
func (s *Server) handleAffectChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		httputil.BadRequest(w, "participant_id is required")
		return
	}

	since, err := parseTimeParam(r, "since")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	until, err := parseTimeParam(r, "until")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if until.IsZero() {
		until = time.Now().UTC()
	}
	if since.IsZero() {
		since = until.Add(-24 * time.Hour)
	}

	states, err := s.pipeline.History(r.Context(), participantID, since, until, chartMaxStates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(states) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no affect states for %s in range", participantID))
		return
	}

	// History comes newest first; the chart wants time flowing left to
	// right.
	xs := make([]string, 0, len(states))
	arousal := make([]opts.LineData, 0, len(states))
	valence := make([]opts.LineData, 0, len(states))
	stress := make([]opts.LineData, 0, len(states))
	for i := len(states) - 1; i >= 0; i-- {
		st := states[i]
		xs = append(xs, st.Timestamp.UTC().Format("01-02 15:04"))
		arousal = append(arousal, opts.LineData{Value: st.Arousal})
		valence = append(valence, opts.LineData{Value: st.Valence})
		stress = append(stress, opts.LineData{Value: st.Stress})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Affect Timelines", Theme: "dark", Width: "1400px", Height: "640px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Affect Dimensions", Subtitle: fmt.Sprintf("participant=%s states=%d range=%s..%s", participantID, len(states), since.Format(time.RFC3339), until.Format(time.RFC3339))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: 1, Name: "score"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	line.SetXAxis(xs).
		AddSeries("arousal", arousal).
		AddSeries("valence", valence).
		AddSeries("stress", stress)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
