package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
)

// SaveAffectState persists one inference result.
func (s *Store) SaveAffectState(ctx context.Context, state *affect.AffectState) error {
	if state.ID == "" {
		return fmt.Errorf("affect state has no ID")
	}
	if state.ParticipantID == "" {
		return fmt.Errorf("affect state has no participant ID")
	}

	features, err := json.Marshal(state.ContributingFeatures)
	if err != nil {
		return fmt.Errorf("failed to marshal contributing features: %w", err)
	}

	_, err = s.ExecContext(ctx, `
		INSERT INTO affect_states (
			state_id, participant_id, arousal, valence, stress, emotion, confidence,
			timestamp_unix_ms, window_start_unix_ms, window_end_unix_ms, contributing_features
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.ID,
		state.ParticipantID,
		state.Arousal,
		state.Valence,
		state.Stress,
		string(state.Emotion),
		state.Confidence,
		state.Timestamp.UnixMilli(),
		state.WindowStart.UnixMilli(),
		state.WindowEnd.UnixMilli(),
		string(features),
	)
	if err != nil {
		return fmt.Errorf("failed to save affect state: %w", err)
	}
	return nil
}

// LatestAffectState returns a participant's most recent inferred state, or
// (nil, nil) when none has been computed yet.
func (s *Store) LatestAffectState(ctx context.Context, participantID string) (*affect.AffectState, error) {
	row := s.QueryRowContext(ctx, `
		SELECT state_id, participant_id, arousal, valence, stress, emotion, confidence,
		       timestamp_unix_ms, window_start_unix_ms, window_end_unix_ms, contributing_features
		FROM affect_states
		WHERE participant_id = ?
		ORDER BY timestamp_unix_ms DESC
		LIMIT 1`,
		participantID,
	)

	state, err := scanAffectState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest affect state: %w", err)
	}
	return state, nil
}

// AffectHistory returns a participant's inferred states with timestamps in
// [since, until), newest first, capped at limit.
func (s *Store) AffectHistory(ctx context.Context, participantID string, since, until time.Time, limit int) ([]affect.AffectState, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.QueryContext(ctx, `
		SELECT state_id, participant_id, arousal, valence, stress, emotion, confidence,
		       timestamp_unix_ms, window_start_unix_ms, window_end_unix_ms, contributing_features
		FROM affect_states
		WHERE participant_id = ?
		  AND timestamp_unix_ms >= ?
		  AND timestamp_unix_ms < ?
		ORDER BY timestamp_unix_ms DESC
		LIMIT ?`,
		participantID, since.UnixMilli(), until.UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query affect history: %w", err)
	}
	defer rows.Close()

	var states []affect.AffectState
	for rows.Next() {
		state, err := scanAffectState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan affect state: %w", err)
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating affect states: %w", err)
	}

	return states, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAffectState(row rowScanner) (*affect.AffectState, error) {
	var state affect.AffectState
	var emotion string
	var tsMillis, startMillis, endMillis int64
	var features string

	err := row.Scan(
		&state.ID, &state.ParticipantID,
		&state.Arousal, &state.Valence, &state.Stress,
		&emotion, &state.Confidence,
		&tsMillis, &startMillis, &endMillis, &features,
	)
	if err != nil {
		return nil, err
	}

	state.Emotion = affect.EmotionLabel(emotion)
	state.Timestamp = time.UnixMilli(tsMillis).UTC()
	state.WindowStart = time.UnixMilli(startMillis).UTC()
	state.WindowEnd = time.UnixMilli(endMillis).UTC()

	if features != "" {
		if err := json.Unmarshal([]byte(features), &state.ContributingFeatures); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contributing features: %w", err)
		}
	}

	return &state, nil
}
