package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/halcyon-health/affect.report/internal/affect"
)

// CreateRule stores a new monitoring rule. The condition is persisted as
// written; callers validate it before handing it over.
func (s *Store) CreateRule(ctx context.Context, r *affect.MonitoringRule) error {
	if r.RuleID == "" {
		return fmt.Errorf("rule has no ID")
	}

	_, err := s.ExecContext(ctx, `
		INSERT INTO monitoring_rules (rule_id, metric_type, condition, severity, message_template, enabled)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.RuleID,
		string(r.MetricType),
		r.Condition,
		string(r.Severity),
		r.MessageTemplate,
		boolToInt(r.Enabled),
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetRule returns one monitoring rule by ID.
func (s *Store) GetRule(ctx context.Context, ruleID string) (*affect.MonitoringRule, error) {
	var r affect.MonitoringRule
	var metricType, severity string
	var enabled int

	err := s.QueryRowContext(ctx, `
		SELECT rule_id, metric_type, condition, severity, message_template, enabled
		FROM monitoring_rules
		WHERE rule_id = ?`,
		ruleID,
	).Scan(&r.RuleID, &metricType, &r.Condition, &severity, &r.MessageTemplate, &enabled)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %q: %w", ruleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	r.MetricType = affect.MetricType(metricType)
	r.Severity = affect.AlertSeverity(severity)
	r.Enabled = enabled != 0
	return &r, nil
}

// ListRules returns monitoring rules ordered by ID. With enabledOnly set,
// disabled rules are skipped; this is the set the evaluation engine loads.
func (s *Store) ListRules(ctx context.Context, enabledOnly bool) ([]affect.MonitoringRule, error) {
	query := `
		SELECT rule_id, metric_type, condition, severity, message_template, enabled
		FROM monitoring_rules`
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY rule_id"

	rows, err := s.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []affect.MonitoringRule
	for rows.Next() {
		var r affect.MonitoringRule
		var metricType, severity string
		var enabled int
		if err := rows.Scan(&r.RuleID, &metricType, &r.Condition, &severity, &r.MessageTemplate, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.MetricType = affect.MetricType(metricType)
		r.Severity = affect.AlertSeverity(severity)
		r.Enabled = enabled != 0
		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// UpdateRule replaces all mutable fields of an existing rule.
func (s *Store) UpdateRule(ctx context.Context, r *affect.MonitoringRule) error {
	result, err := s.ExecContext(ctx, `
		UPDATE monitoring_rules
		SET metric_type = ?, condition = ?, severity = ?, message_template = ?, enabled = ?,
		    updated_at = strftime('%s', 'now')
		WHERE rule_id = ?`,
		string(r.MetricType),
		r.Condition,
		string(r.Severity),
		r.MessageTemplate,
		boolToInt(r.Enabled),
		r.RuleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %q: %w", r.RuleID, ErrNotFound)
	}
	return nil
}

// DeleteRule removes a rule. Alerts it already fired stay in the log.
func (s *Store) DeleteRule(ctx context.Context, ruleID string) error {
	result, err := s.ExecContext(ctx, `DELETE FROM monitoring_rules WHERE rule_id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %q: %w", ruleID, ErrNotFound)
	}
	return nil
}

// InsertAlert appends one fired alert to the log.
func (s *Store) InsertAlert(ctx context.Context, a *affect.Alert) error {
	if a.ID == "" {
		return fmt.Errorf("alert has no ID")
	}

	_, err := s.ExecContext(ctx, `
		INSERT INTO alerts (alert_id, rule_id, participant_id, metric_type, value, severity, message, timestamp_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.RuleID,
		a.ParticipantID,
		string(a.MetricType),
		a.Value,
		string(a.Severity),
		a.Message,
		a.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// InsertAlerts appends a batch of alerts in one transaction. A reading that
// trips several rules produces several alerts at once.
func (s *Store) InsertAlerts(ctx context.Context, alerts []affect.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alerts (alert_id, rule_id, participant_id, metric_type, value, severity, message, timestamp_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range alerts {
		a := &alerts[i]
		if a.ID == "" {
			return fmt.Errorf("alert %d has no ID", i)
		}
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.RuleID, a.ParticipantID, string(a.MetricType), a.Value,
			string(a.Severity), a.Message, a.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert alert %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}
	return nil
}

// RecentAlerts returns the newest alerts, newest first, capped at limit.
// An empty participantID means alerts across all participants; a zero
// since means no lower time bound.
func (s *Store) RecentAlerts(ctx context.Context, participantID string, since time.Time, limit int) ([]affect.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT alert_id, rule_id, participant_id, metric_type, value, severity, message, timestamp_unix_ms
		FROM alerts
		WHERE 1=1`
	args := []interface{}{}
	if participantID != "" {
		query += " AND participant_id = ?"
		args = append(args, participantID)
	}
	if !since.IsZero() {
		query += " AND timestamp_unix_ms >= ?"
		args = append(args, since.UnixMilli())
	}
	query += " ORDER BY timestamp_unix_ms DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []affect.Alert
	for rows.Next() {
		var a affect.Alert
		var metricType, severity string
		var tsMillis int64
		if err := rows.Scan(&a.ID, &a.RuleID, &a.ParticipantID, &metricType, &a.Value, &severity, &a.Message, &tsMillis); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.MetricType = affect.MetricType(metricType)
		a.Severity = affect.AlertSeverity(severity)
		a.Timestamp = time.UnixMilli(tsMillis).UTC()
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
