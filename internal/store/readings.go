package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
)

// InsertReading stores one sensor reading. Inserts are idempotent on the
// reading ID: replaying a device batch after a dropped ACK is a no-op, which
// is what keeps baseline updates at-most-once end to end. Unknown
// participants are registered on first contact.
func (s *Store) InsertReading(ctx context.Context, r *affect.SensorReading) error {
	if r.ID == "" {
		return fmt.Errorf("reading has no ID")
	}
	if r.ParticipantID == "" {
		return fmt.Errorf("reading has no participant ID")
	}

	if err := s.ensureParticipant(ctx, r.ParticipantID); err != nil {
		return err
	}

	_, err := s.ExecContext(ctx, `
		INSERT OR IGNORE INTO sensor_readings (
			reading_id, participant_id, metric_type, value, unit, timestamp_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.ParticipantID,
		string(r.MetricType),
		r.Value,
		r.Unit,
		r.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// InsertReadings stores a batch of readings in one transaction. The whole
// batch lands or none of it does; duplicate IDs inside or across batches
// are ignored.
func (s *Store) InsertReadings(ctx context.Context, readings []affect.SensorReading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO sensor_readings (
			reading_id, participant_id, metric_type, value, unit, timestamp_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	seen := make(map[string]bool)
	for i := range readings {
		r := &readings[i]
		if r.ID == "" {
			return fmt.Errorf("reading %d has no ID", i)
		}
		if r.ParticipantID == "" {
			return fmt.Errorf("reading %d has no participant ID", i)
		}

		if !seen[r.ParticipantID] {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO participants (participant_id) VALUES (?)`, r.ParticipantID); err != nil {
				return fmt.Errorf("failed to register participant: %w", err)
			}
			seen[r.ParticipantID] = true
		}

		if _, err := stmt.ExecContext(ctx,
			r.ID, r.ParticipantID, string(r.MetricType), r.Value, r.Unit, r.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert reading %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit readings: %w", err)
	}
	return nil
}

// ReadingsInWindow returns a participant's readings with timestamps in
// [start, end), ordered by timestamp ascending. A nil metricTypes slice
// means all metrics. This is the fetch the inference pipeline runs on.
func (s *Store) ReadingsInWindow(ctx context.Context, participantID string, metricTypes []affect.MetricType, start, end time.Time) ([]affect.SensorReading, error) {
	query := `
		SELECT reading_id, participant_id, metric_type, value, unit, timestamp_unix_ms
		FROM sensor_readings
		WHERE participant_id = ?
		  AND timestamp_unix_ms >= ?
		  AND timestamp_unix_ms < ?
	`
	args := []interface{}{participantID, start.UnixMilli(), end.UnixMilli()}

	if len(metricTypes) > 0 {
		placeholders := make([]string, len(metricTypes))
		for i, m := range metricTypes {
			placeholders[i] = "?"
			args = append(args, string(m))
		}
		query += fmt.Sprintf(" AND metric_type IN (%s)", strings.Join(placeholders, ", "))
	}

	query += " ORDER BY timestamp_unix_ms ASC"

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// RecentReadings returns a participant's newest readings, newest first,
// capped at limit.
func (s *Store) RecentReadings(ctx context.Context, participantID string, limit int) ([]affect.SensorReading, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.QueryContext(ctx, `
		SELECT reading_id, participant_id, metric_type, value, unit, timestamp_unix_ms
		FROM sensor_readings
		WHERE participant_id = ?
		ORDER BY timestamp_unix_ms DESC
		LIMIT ?`,
		participantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// CountReadings returns the number of stored readings for a participant.
func (s *Store) CountReadings(ctx context.Context, participantID string) (int64, error) {
	var count int64
	err := s.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sensor_readings WHERE participant_id = ?`, participantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

type readingRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanReadings(rows readingRows) ([]affect.SensorReading, error) {
	var readings []affect.SensorReading
	for rows.Next() {
		var r affect.SensorReading
		var metricType string
		var tsMillis int64

		if err := rows.Scan(&r.ID, &r.ParticipantID, &metricType, &r.Value, &r.Unit, &tsMillis); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		r.MetricType = affect.MetricType(metricType)
		r.Timestamp = time.UnixMilli(tsMillis).UTC()
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating readings: %w", err)
	}

	return readings, nil
}
