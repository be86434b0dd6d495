package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/httputil"
	"github.com/halcyon-health/affect.report/internal/rules"
)

// handleRules handles list and create operations.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRules(w, r)
	case http.MethodPost:
		s.handleCreateRule(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"

	list, err := s.store.ListRules(r.Context(), enabledOnly)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []affect.MonitoringRule{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"rules": list,
		"count": len(list),
	})
}

// validateRule checks the fields every stored rule must carry. The
// condition gets a full parse so a typo fails the request, not every
// future reading.
func validateRule(rule *affect.MonitoringRule) error {
	if rule.MetricType == "" {
		return fmt.Errorf("metric_type is required")
	}
	if rule.Condition == "" {
		return fmt.Errorf("condition is required")
	}
	if err := rules.ValidateCondition(rule.Condition); err != nil {
		return fmt.Errorf("invalid condition: %v", err)
	}
	switch rule.Severity {
	case affect.SeverityInfo, affect.SeverityWarning, affect.SeverityCritical:
	default:
		return fmt.Errorf("severity must be one of info, warning, critical")
	}
	return nil
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule affect.MonitoringRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := validateRule(&rule); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if rule.RuleID == "" {
		rule.RuleID = uuid.New().String()
	}

	if err := s.store.CreateRule(r.Context(), &rule); err != nil {
		s.writeError(w, err)
		return
	}
	s.reloadEngine(r.Context())

	httputil.Created(w, rule)
}

// handleRuleByID handles get, update, and delete operations for a
// specific rule.
func (s *Server) handleRuleByID(w http.ResponseWriter, r *http.Request) {
	ruleID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/rules/"))
	if ruleID == "" {
		httputil.BadRequest(w, "rule_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetRule(w, r, ruleID)
	case http.MethodPut:
		s.handleUpdateRule(w, r, ruleID)
	case http.MethodDelete:
		s.handleDeleteRule(w, r, ruleID)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request, ruleID string) {
	rule, err := s.store.GetRule(r.Context(), ruleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request, ruleID string) {
	var rule affect.MonitoringRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	rule.RuleID = ruleID

	if err := validateRule(&rule); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.store.UpdateRule(r.Context(), &rule); err != nil {
		s.writeError(w, err)
		return
	}
	s.reloadEngine(r.Context())

	httputil.WriteJSONOK(w, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request, ruleID string) {
	if err := s.store.DeleteRule(r.Context(), ruleID); err != nil {
		s.writeError(w, err)
		return
	}
	s.reloadEngine(r.Context())

	httputil.WriteJSONOK(w, map[string]string{
		"status":  "deleted",
		"rule_id": ruleID,
	})
}

// reloadEngine pushes the current enabled rule set into the evaluation
// engine after any mutation, so rule changes take effect without a
// restart. Alerts already fired are untouched.
func (s *Server) reloadEngine(ctx context.Context) {
	if s.engine == nil {
		return
	}

	active, err := s.store.ListRules(ctx, true)
	if err != nil {
		log.Printf("[API] failed to reload rules into engine: %v", err)
		return
	}
	for _, err := range s.engine.SetRules(active) {
		log.Printf("[API] rule skipped on reload: %v", err)
	}
}

// handleAlerts lists fired alerts, optionally filtered by participant and
// lower time bound.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	participantID := r.URL.Query().Get("participant_id")
	since, err := parseTimeParam(r, "since")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	limit, err := parseLimitParam(r, "limit", 100)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	alerts, err := s.store.RecentAlerts(r.Context(), participantID, since, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []affect.Alert{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}
