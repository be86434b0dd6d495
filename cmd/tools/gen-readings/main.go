// Command gen-readings generates a synthetic physiological stream for
// demos and soak tests. The stream is written as a JSON array or POSTed
// to a running affectd in batches.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/synth"
)

var (
	participant = flag.String("participant", "demo", "participant ID to generate for")
	duration    = flag.Duration("duration", 24*time.Hour, "length of the run")
	interval    = flag.Duration("interval", time.Minute, "sample cadence")
	start       = flag.String("start", "", "RFC3339 start time (default one duration ago)")
	seed        = flag.Int64("seed", 0, "random seed (0 derives one from the start time)")
	activity    = flag.Int("activity", 3, "number of activity bouts")
	stress      = flag.Int("stress", 2, "number of stress episodes")
	output      = flag.String("o", "readings.json", "output path for the JSON array")
	postURL     = flag.String("post", "", "POST batches to this affectd base URL instead of writing a file")
	udpAddr     = flag.String("udp", "", "send readings as JSON datagrams to this affectd UDP address")
	batchSize   = flag.Int("batch", 500, "readings per POST batch")
	rate        = flag.Int("rate", 200, "datagrams per second in UDP mode")
)

func main() {
	flag.Parse()

	var startAt time.Time
	if *start != "" {
		parsed, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			log.Fatalf("invalid -start: %v", err)
		}
		startAt = parsed
	}

	gen := synth.NewGenerator(synth.Params{
		ParticipantID:  *participant,
		Seed:           *seed,
		Start:          startAt,
		Duration:       *duration,
		Interval:       *interval,
		ActivityBouts:  *activity,
		StressEpisodes: *stress,
	})

	readings := gen.All()
	log.Printf("generated %d readings over %s for %s (%d activity bouts, %d stress episodes)",
		len(readings), *duration, *participant, len(gen.ActivityWindows()), len(gen.StressWindows()))

	if *postURL != "" {
		if err := postReadings(*postURL, readings, *batchSize); err != nil {
			log.Fatalf("failed to post readings: %v", err)
		}
		log.Printf("✓ Posted %d readings to %s", len(readings), *postURL)
		return
	}

	if *udpAddr != "" {
		if err := sendDatagrams(*udpAddr, readings, *rate); err != nil {
			log.Fatalf("failed to send datagrams: %v", err)
		}
		log.Printf("✓ Sent %d readings to %s over UDP", len(readings), *udpAddr)
		return
	}

	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal readings: %v", err)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		log.Fatalf("failed to write %s: %v", *output, err)
	}
	log.Printf("✓ Created: %s", *output)
}

func postReadings(baseURL string, readings []affect.SensorReading, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	client := &http.Client{Timeout: 30 * time.Second}
	url := baseURL + "/api/readings"

	for offset := 0; offset < len(readings); offset += batchSize {
		end := offset + batchSize
		if end > len(readings) {
			end = len(readings)
		}
		body, err := json.Marshal(readings[offset:end])
		if err != nil {
			return err
		}

		resp, err := client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("batch at offset %d rejected with %d: %s", offset, resp.StatusCode, respBody)
		}
		log.Printf("%d/%d readings posted", end, len(readings))
	}
	return nil
}

// sendDatagrams replays the stream as one-reading JSON datagrams, paced
// the way an on-LAN wearable bridge emits them.
func sendDatagrams(addr string, readings []affect.SensorReading, rate int) error {
	if rate <= 0 {
		rate = 200
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	interval := time.Second / time.Duration(rate)
	var sent, bytes int64
	lastLog := time.Now()

	for i := range readings {
		payload, err := json.Marshal(readings[i])
		if err != nil {
			return err
		}
		n, err := conn.Write(payload)
		if err != nil {
			return err
		}
		sent++
		bytes += int64(n)

		if time.Since(lastLog) >= time.Second {
			log.Printf("Sent: %d datagrams, %.1f KB", sent, float64(bytes)/1024)
			lastLog = time.Now()
		}
		time.Sleep(interval)
	}
	return nil
}
