package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
)

// InsertEMALabel stores one self-reported rating.
func (s *Store) InsertEMALabel(ctx context.Context, l *affect.EMALabel) error {
	if l.ID == "" {
		return fmt.Errorf("label has no ID")
	}
	if l.ParticipantID == "" {
		return fmt.Errorf("label has no participant ID")
	}

	if err := s.ensureParticipant(ctx, l.ParticipantID); err != nil {
		return err
	}

	_, err := s.ExecContext(ctx, `
		INSERT INTO ema_labels (label_id, participant_id, arousal, valence, stress, emotion_tag, context_note, timestamp_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID,
		l.ParticipantID,
		l.Arousal,
		l.Valence,
		l.Stress,
		string(l.EmotionTag),
		l.ContextNote,
		l.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert label: %w", err)
	}
	return nil
}

// EMALabels returns a participant's self reports with timestamps in
// [since, until), newest first, capped at limit.
func (s *Store) EMALabels(ctx context.Context, participantID string, since, until time.Time, limit int) ([]affect.EMALabel, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.QueryContext(ctx, `
		SELECT label_id, participant_id, arousal, valence, stress, emotion_tag, context_note, timestamp_unix_ms
		FROM ema_labels
		WHERE participant_id = ?
		  AND timestamp_unix_ms >= ?
		  AND timestamp_unix_ms < ?
		ORDER BY timestamp_unix_ms DESC
		LIMIT ?`,
		participantID, since.UnixMilli(), until.UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []affect.EMALabel
	for rows.Next() {
		var l affect.EMALabel
		var tag string
		var tsMillis int64
		if err := rows.Scan(&l.ID, &l.ParticipantID, &l.Arousal, &l.Valence, &l.Stress, &tag, &l.ContextNote, &tsMillis); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		l.EmotionTag = affect.EmotionLabel(tag)
		l.Timestamp = time.UnixMilli(tsMillis).UTC()
		labels = append(labels, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating labels: %w", err)
	}

	return labels, nil
}

// RecordPrompt logs that a rating prompt was issued, with the reason it
// fired. The prompt log is what rate limiting reads back.
func (s *Store) RecordPrompt(ctx context.Context, promptID, participantID, reason string, at time.Time) error {
	if promptID == "" {
		return fmt.Errorf("prompt has no ID")
	}

	_, err := s.ExecContext(ctx, `
		INSERT INTO ema_prompts (prompt_id, participant_id, reason, timestamp_unix_ms)
		VALUES (?, ?, ?, ?)`,
		promptID, participantID, reason, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record prompt: %w", err)
	}
	return nil
}

// CountPromptsSince returns how many prompts a participant has received at
// or after the given time.
func (s *Store) CountPromptsSince(ctx context.Context, participantID string, since time.Time) (int, error) {
	var count int
	err := s.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ema_prompts
		WHERE participant_id = ? AND timestamp_unix_ms >= ?`,
		participantID, since.UnixMilli(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prompts: %w", err)
	}
	return count, nil
}

// LastPromptAt returns when a participant was last prompted, or (zero, nil)
// if they never have been.
func (s *Store) LastPromptAt(ctx context.Context, participantID string) (time.Time, error) {
	var tsMillis int64
	err := s.QueryRowContext(ctx, `
		SELECT timestamp_unix_ms FROM ema_prompts
		WHERE participant_id = ?
		ORDER BY timestamp_unix_ms DESC
		LIMIT 1`,
		participantID,
	).Scan(&tsMillis)

	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last prompt: %w", err)
	}
	return time.UnixMilli(tsMillis).UTC(), nil
}
