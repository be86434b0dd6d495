package devicemux

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/halcyon-health/affect.report/internal/ingest"
	"github.com/halcyon-health/affect.report/internal/monitoring"
)

// CurrentState holds the latest status values received from the board
// and is intentionally package-level so admin routes or tests can inspect it.
var CurrentState map[string]any

// HandleVitals parses a vitals line and pushes the readings through the
// shared ingest path, so board samples get the same validation, rule checks
// and sweep marking as every other source.
func HandleVitals(ctx context.Context, p *ingest.Processor, participantID, payload string) error {
	readings, err := ParseVitalsLine(participantID, payload)
	if err != nil {
		return err
	}
	if len(readings) == 1 {
		return p.Process(ctx, &readings[0])
	}
	return p.ProcessBatch(ctx, readings)
}

// HandleStatusResponse folds a JSON status blob from the board into
// CurrentState.
func HandleStatusResponse(payload string) error {
	var statusValues map[string]any

	if err := json.Unmarshal([]byte(payload), &statusValues); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %v", err)
	}

	// update the current state with the new status values
	if CurrentState == nil {
		CurrentState = make(map[string]any)
	}
	for k, v := range statusValues {
		CurrentState[k] = v
	}

	monitoring.Logf("[DeviceMux] status line: %+v", payload)

	return nil
}

// HandleEvent dispatches one line from the board to the appropriate
// handler. The participant is whoever the board is paired to; pairing is
// fixed for the lifetime of the event loop.
func HandleEvent(ctx context.Context, p *ingest.Processor, participantID, payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeVitals:
		if err := HandleVitals(ctx, p, participantID, payload); err != nil {
			return fmt.Errorf("failed to handle vitals line: %v", err)
		}
	case EventTypeStatus:
		if err := HandleStatusResponse(payload); err != nil {
			return fmt.Errorf("failed to handle status response: %v", err)
		}
	default:
		monitoring.Logf("[DeviceMux] unknown line: %s", payload)
	}
	return nil
}
