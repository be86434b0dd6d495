// Command affect-report renders an offline report for one participant: a
// dimension timeline PNG with EMA rating overlays plus summary and
// calibration statistics printed as a table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"text/tabwriter"
	"time"

	_ "modernc.org/sqlite"

	"github.com/halcyon-health/affect.report/internal/report"
	"github.com/halcyon-health/affect.report/internal/store"
)

var (
	dbPath      = flag.String("db", "affect.db", "SQLite database path")
	participant = flag.String("participant", "", "participant ID to report on (required)")
	since       = flag.String("since", "", "RFC3339 range start (default 24h before until)")
	until       = flag.String("until", "", "RFC3339 range end (default now)")
	outDir      = flag.String("o", "reports", "output directory for the plot")
)

func parseTimeFlag(name, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		log.Fatalf("invalid -%s: %v", name, err)
	}
	return parsed
}

func main() {
	flag.Parse()

	if *participant == "" {
		log.Fatal("-participant is required")
	}

	// The report only reads, so open without touching the schema.
	st, err := store.OpenStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	summary, err := report.Generate(context.Background(), st, report.Options{
		ParticipantID: *participant,
		Since:         parseTimeFlag("since", *since),
		Until:         parseTimeFlag("until", *until),
		OutputDir:     *outDir,
	})
	if err != nil {
		log.Fatalf("failed to generate report: %v", err)
	}

	printSummary(summary)
	log.Printf("✓ Report written: %s", summary.PlotFile)
}

func printSummary(s *report.Summary) {
	fmt.Printf("Affect report for %s\n", s.ParticipantID)
	fmt.Printf("Range: %s to %s\n", s.Since.Format(time.RFC3339), s.Until.Format(time.RFC3339))
	fmt.Printf("States: %d  Labels: %d (%d paired within ±%s)\n\n",
		s.States, s.Labels, s.PairedLabels, report.AssociationWindow)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "DIMENSION\tMEAN\tSTDDEV\tMIN\tMAX")
	for _, dim := range []string{"arousal", "valence", "stress"} {
		d := s.Dimensions[dim]
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%.3f\n", dim, d.Mean, d.StdDev, d.Min, d.Max)
	}
	fmt.Fprintln(w)

	if len(s.Calibration) > 0 {
		fmt.Fprintln(w, "CALIBRATION\tPAIRS\tMAE\tCORRELATION")
		for _, row := range s.Calibration {
			corr := "n/a"
			if !math.IsNaN(row.Correlation) {
				corr = fmt.Sprintf("%.3f", row.Correlation)
			}
			fmt.Fprintf(w, "%s\t%d\t%.3f\t%s\n", row.Dimension, row.Pairs, row.MAE, corr)
		}
		fmt.Fprintln(w)
	}

	if len(s.Baselines) > 0 {
		fmt.Fprintln(w, "BASELINE\tMEAN\tVARIANCE\tSAMPLES")
		for _, b := range s.Baselines {
			fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%d\n", b.FeatureName, b.Mean, b.Variance, b.SampleCount)
		}
	}

	w.Flush()
}
