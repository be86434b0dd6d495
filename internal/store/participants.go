package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Participant is one enrolled wearer. The participant_id is the stable key
// devices stamp on their readings; display name and timezone are operator
// facing.
type Participant struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Timezone      string    `json:"timezone"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpsertParticipant creates a participant or updates its display name and
// timezone if the ID already exists.
func (s *Store) UpsertParticipant(ctx context.Context, p *Participant) error {
	query := `
		INSERT INTO participants (participant_id, display_name, timezone)
		VALUES (?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			display_name = excluded.display_name,
			timezone = excluded.timezone,
			updated_at = strftime('%s','now')
	`

	if p.Timezone == "" {
		p.Timezone = "UTC"
	}

	_, err := s.ExecContext(ctx, query, p.ParticipantID, p.DisplayName, p.Timezone)
	if err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}
	return nil
}

// ensureParticipant registers a participant ID with defaults if it is not
// already enrolled. The ingest paths call this so readings from a device can
// arrive before an operator fills in the roster.
func (s *Store) ensureParticipant(ctx context.Context, participantID string) error {
	_, err := s.ExecContext(ctx,
		`INSERT OR IGNORE INTO participants (participant_id) VALUES (?)`,
		participantID,
	)
	if err != nil {
		return fmt.Errorf("failed to register participant: %w", err)
	}
	return nil
}

// GetParticipant retrieves a participant by ID.
func (s *Store) GetParticipant(ctx context.Context, participantID string) (*Participant, error) {
	query := `
		SELECT participant_id, display_name, timezone, created_at, updated_at
		FROM participants
		WHERE participant_id = ?
	`

	var p Participant
	var createdAtUnix, updatedAtUnix int64

	err := s.QueryRowContext(ctx, query, participantID).Scan(
		&p.ParticipantID,
		&p.DisplayName,
		&p.Timezone,
		&createdAtUnix,
		&updatedAtUnix,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("participant %q: %w", participantID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	p.CreatedAt = time.Unix(createdAtUnix, 0)
	p.UpdatedAt = time.Unix(updatedAtUnix, 0)

	return &p, nil
}

// GetAllParticipants retrieves all participants ordered by ID.
func (s *Store) GetAllParticipants(ctx context.Context) ([]Participant, error) {
	query := `
		SELECT participant_id, display_name, timezone, created_at, updated_at
		FROM participants
		ORDER BY participant_id ASC
	`

	rows, err := s.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		var createdAtUnix, updatedAtUnix int64

		err := rows.Scan(
			&p.ParticipantID,
			&p.DisplayName,
			&p.Timezone,
			&createdAtUnix,
			&updatedAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}

		p.CreatedAt = time.Unix(createdAtUnix, 0)
		p.UpdatedAt = time.Unix(updatedAtUnix, 0)

		participants = append(participants, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return participants, nil
}

// DeleteParticipant removes a participant from the roster. Their readings,
// baselines and states are removed with them.
func (s *Store) DeleteParticipant(ctx context.Context, participantID string) error {
	result, err := s.ExecContext(ctx, `DELETE FROM participants WHERE participant_id = ?`, participantID)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("participant %q: %w", participantID, ErrNotFound)
	}

	for _, table := range []string{"sensor_readings", "baselines", "affect_states", "ema_labels", "ema_prompts", "alerts"} {
		if _, err := s.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE participant_id = ?", table), participantID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	return nil
}

// ResetParticipantBaselines deletes a participant's learned baselines and
// affect history so adaptation starts over from the next reading. Raw
// readings are kept.
func (s *Store) ResetParticipantBaselines(ctx context.Context, participantID string) error {
	if _, err := s.GetParticipant(ctx, participantID); err != nil {
		return err
	}

	if _, err := s.ExecContext(ctx, `DELETE FROM baselines WHERE participant_id = ?`, participantID); err != nil {
		return fmt.Errorf("failed to reset baselines: %w", err)
	}
	if _, err := s.ExecContext(ctx, `DELETE FROM affect_states WHERE participant_id = ?`, participantID); err != nil {
		return fmt.Errorf("failed to reset affect states: %w", err)
	}

	return nil
}
