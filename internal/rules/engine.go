package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/monitoring"
)

// ErrRuleEvaluation marks a rule that could not be compiled or evaluated.
// Always isolated to the offending rule; never propagates into the reading
// path.
var ErrRuleEvaluation = errors.New("rule evaluation failed")

// RuleEvaluationError carries the failing rule's identity alongside the
// underlying parse or evaluation problem.
type RuleEvaluationError struct {
	RuleID    string
	Condition string
	Err       error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s (%q): %v", e.RuleID, e.Condition, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return ErrRuleEvaluation }

// ValidateCondition compiles a condition and reports whether it is
// acceptable. Used by the API layer to reject bad rules at save time,
// before they reach the engine.
func ValidateCondition(condition string) error {
	if strings.TrimSpace(condition) == "" {
		return fmt.Errorf("condition is empty")
	}
	_, err := Compile(condition)
	return err
}

type compiledRule struct {
	rule    affect.MonitoringRule
	program *Program
}

// EngineStats counts engine activity since startup.
type EngineStats struct {
	Evaluations int64 `json:"evaluations"`
	Alerts      int64 `json:"alerts"`
	Errors      int64 `json:"errors"`
}

// Engine holds the active rule set in compiled form and evaluates each
// incoming reading against it. Rules are independent of each other and of
// the affect pipeline; a malformed rule is logged, counted and skipped
// without disturbing its neighbours.
type Engine struct {
	mu    sync.RWMutex
	rules []compiledRule
	stats EngineStats
}

// NewEngine builds an engine with no rules loaded.
func NewEngine() *Engine {
	return &Engine{}
}

// SetRules replaces the active rule set. Rules whose conditions fail to
// compile are skipped and returned as typed errors; valid rules still load.
// Disabled rules are kept out of the hot path entirely.
func (e *Engine) SetRules(rules []affect.MonitoringRule) []error {
	var compiled []compiledRule
	var bad []error
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		prog, err := Compile(r.Condition)
		if err != nil {
			rerr := &RuleEvaluationError{RuleID: r.RuleID, Condition: r.Condition, Err: err}
			monitoring.Logf("[Rules] skipping rule %s: %v", r.RuleID, err)
			bad = append(bad, rerr)
			continue
		}
		compiled = append(compiled, compiledRule{rule: r, program: prog})
	}

	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()
	monitoring.Logf("[Rules] loaded %d active rules (%d rejected)", len(compiled), len(bad))
	return bad
}

// ActiveRuleCount returns how many rules are currently compiled in.
func (e *Engine) ActiveRuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// EvaluateReading checks one reading against every active rule for its
// metric type and returns the resulting alerts, zero or more. Evaluation
// order across rules is not significant: rules cannot observe each other.
// A rule that fails at evaluation time is logged and counted; the
// remaining rules still run.
func (e *Engine) EvaluateReading(r affect.SensorReading) []affect.Alert {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	var alerts []affect.Alert
	var evaluations, errCount int64
	for _, cr := range rules {
		if cr.rule.MetricType != "" && cr.rule.MetricType != r.MetricType {
			continue
		}
		evaluations++
		matched, err := cr.program.Eval(r.Value)
		if err != nil {
			errCount++
			monitoring.Logf("[Rules] rule %s evaluation error on %s=%v: %v",
				cr.rule.RuleID, r.MetricType, r.Value, err)
			continue
		}
		if !matched {
			continue
		}
		alerts = append(alerts, affect.Alert{
			ID:            uuid.New().String(),
			RuleID:        cr.rule.RuleID,
			ParticipantID: r.ParticipantID,
			MetricType:    r.MetricType,
			Value:         r.Value,
			Severity:      cr.rule.Severity,
			Message:       renderMessage(cr.rule.MessageTemplate, r),
			Timestamp:     r.Timestamp,
		})
	}

	e.mu.Lock()
	e.stats.Evaluations += evaluations
	e.stats.Alerts += int64(len(alerts))
	e.stats.Errors += errCount
	e.mu.Unlock()

	return alerts
}

// renderMessage substitutes {metric} and {value} into the rule's template.
// An empty template falls back to a serviceable default.
func renderMessage(template string, r affect.SensorReading) string {
	if template == "" {
		template = "{metric} reading of {value} matched rule"
	}
	return strings.NewReplacer(
		"{metric}", string(r.MetricType),
		"{value}", formatValue(r.Value),
	).Replace(template)
}

// formatValue renders 105.0 as "105", not "105.000000".
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
