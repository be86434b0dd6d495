package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
)

// GetBaseline returns the stored baseline for one (participant, feature)
// pair, or (nil, nil) when the feature has never been observed.
func (s *Store) GetBaseline(ctx context.Context, participantID, featureName string) (*affect.Baseline, error) {
	var b affect.Baseline
	var updatedMillis int64

	err := s.QueryRowContext(ctx, `
		SELECT participant_id, feature_name, mean, variance, sample_count, last_updated_unix_ms
		FROM baselines
		WHERE participant_id = ? AND feature_name = ?`,
		participantID, featureName,
	).Scan(&b.ParticipantID, &b.FeatureName, &b.Mean, &b.Variance, &b.SampleCount, &updatedMillis)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	b.LastUpdated = time.UnixMilli(updatedMillis).UTC()
	return &b, nil
}

// PutBaseline writes a baseline, replacing any previous state for the same
// (participant, feature) pair.
func (s *Store) PutBaseline(ctx context.Context, b *affect.Baseline) error {
	if b.ParticipantID == "" || b.FeatureName == "" {
		return fmt.Errorf("baseline missing participant or feature name")
	}

	_, err := s.ExecContext(ctx, `
		INSERT INTO baselines (participant_id, feature_name, mean, variance, sample_count, last_updated_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(participant_id, feature_name) DO UPDATE SET
			mean = excluded.mean,
			variance = excluded.variance,
			sample_count = excluded.sample_count,
			last_updated_unix_ms = excluded.last_updated_unix_ms`,
		b.ParticipantID,
		b.FeatureName,
		b.Mean,
		b.Variance,
		b.SampleCount,
		b.LastUpdated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to put baseline: %w", err)
	}
	return nil
}

// ListBaselines returns all baselines for a participant, ordered by feature
// name.
func (s *Store) ListBaselines(ctx context.Context, participantID string) ([]affect.Baseline, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT participant_id, feature_name, mean, variance, sample_count, last_updated_unix_ms
		FROM baselines
		WHERE participant_id = ?
		ORDER BY feature_name`,
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	var baselines []affect.Baseline
	for rows.Next() {
		var b affect.Baseline
		var updatedMillis int64
		if err := rows.Scan(&b.ParticipantID, &b.FeatureName, &b.Mean, &b.Variance, &b.SampleCount, &updatedMillis); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		b.LastUpdated = time.UnixMilli(updatedMillis).UTC()
		baselines = append(baselines, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating baselines: %w", err)
	}

	return baselines, nil
}
