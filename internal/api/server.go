// Package api exposes the monitoring service over HTTP: reading ingest,
// on-demand inference, affect queries, rule and EMA management, a live
// websocket stream, and a localhost-gated debug surface.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"tailscale.com/tsweb"

	"github.com/halcyon-health/affect.report/internal/affect"
	"github.com/halcyon-health/affect.report/internal/config"
	"github.com/halcyon-health/affect.report/internal/httputil"
	"github.com/halcyon-health/affect.report/internal/ingest"
	"github.com/halcyon-health/affect.report/internal/rules"
	"github.com/halcyon-health/affect.report/internal/store"
	"github.com/halcyon-health/affect.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	store     *store.Store
	pipeline  *affect.Pipeline
	engine    *rules.Engine
	processor *ingest.Processor
	tuning    *config.TuningConfig
	hub       *Hub

	// onReset runs after a participant's baselines are cleared, so the
	// cache layer can drop its stale latest state.
	onReset func(ctx context.Context, participantID string)

	started time.Time
}

// ServerConfig carries the server's collaborators. Store, Pipeline and
// Processor are required; the rest may be nil.
type ServerConfig struct {
	Store     *store.Store
	Pipeline  *affect.Pipeline
	Engine    *rules.Engine
	Processor *ingest.Processor
	Tuning    *config.TuningConfig
	Hub       *Hub
	OnReset   func(ctx context.Context, participantID string)
}

func NewServer(cfg ServerConfig) *Server {
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		store:     cfg.Store,
		pipeline:  cfg.Pipeline,
		engine:    cfg.Engine,
		processor: cfg.Processor,
		tuning:    cfg.Tuning,
		hub:       hub,
		onReset:   cfg.OnReset,
		started:   time.Now(),
	}
}

// Hub returns the websocket hub so callers can wire broadcast sources.
func (s *Server) Hub() *Hub { return s.hub }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/readings", s.handleReadings)
	mux.HandleFunc("/api/readings/recent", s.handleRecentReadings)

	mux.HandleFunc("/api/inference/run", s.handleRunInference)
	mux.HandleFunc("/api/affect/latest", s.handleLatestAffect)
	mux.HandleFunc("/api/affect/history", s.handleAffectHistory)

	mux.HandleFunc("/api/rules", s.handleRules)
	mux.HandleFunc("/api/rules/", s.handleRuleByID)
	mux.HandleFunc("/api/alerts", s.handleAlerts)

	mux.HandleFunc("/api/ema", s.handleEMA)

	mux.HandleFunc("/api/participants", s.handleParticipants)
	mux.HandleFunc("/api/participants/", s.handleParticipantByID)
	mux.HandleFunc("/api/timezones", s.handleTimezones)

	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/healthz", s.handleHealthz)
	mux.HandleFunc("/api/version", s.handleVersion)

	mux.HandleFunc("/ws/affect", s.hub.HandleWS)

	// The charts handler joins the tsweb debug index, which also gates it
	// to local access.
	debug := tsweb.Debugger(mux)
	debug.Handle("charts/affect", "Affect dimension timelines", http.HandlerFunc(s.handleAffectChart))
	if s.store != nil {
		s.store.AttachAdminRoutes(mux)
	}

	return mux
}

// writeError maps domain errors onto HTTP statuses: not enough readings is
// the client's problem (422), a vanished row is 404, a deadline is 504,
// and a failed persist is 503. Everything else is a plain 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, affect.ErrInsufficientData):
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ingest.ErrInvalid):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, store.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, affect.ErrTimeout):
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, affect.ErrBaselinePersistence):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// contextWithTimeout applies d when positive, otherwise passes ctx
// through with a no-op cancel.
func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, func()) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// parseTimeParam reads an RFC3339 or unix-seconds query value. A missing
// value returns the zero time without error.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("invalid '" + name + "' parameter, want RFC3339 or unix seconds")
	}
	return t.UTC(), nil
}

// parseLimitParam reads a positive integer query value, returning def when
// absent.
func parseLimitParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("invalid '" + name + "' parameter")
	}
	return n, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	health := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.processor != nil {
		health["ingest"] = s.processor.Stats()
	}
	if s.engine != nil {
		health["rules"] = s.engine.Stats()
	}
	health["stream_clients"] = s.hub.ClientCount()

	httputil.WriteJSONOK(w, health)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

// handleConfig reports the effective tuning values after defaulting, not
// the raw file, so operators see what the pipeline actually runs with.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.tuning == nil {
		httputil.WriteJSONOK(w, map[string]interface{}{})
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"window_seconds":       s.tuning.GetWindowSeconds(),
		"sweep_interval":       s.tuning.GetSweepInterval().String(),
		"inference_timeout":    s.tuning.GetInferenceTimeout().String(),
		"baseline_half_life":   s.tuning.GetBaselineHalfLife(),
		"deviation_clamp_min":  s.tuning.GetDeviationClampMin(),
		"deviation_clamp_max":  s.tuning.GetDeviationClampMax(),
		"mature_sample_count":  s.tuning.GetMatureSampleCount(),
		"emotion_enabled":      s.tuning.GetEmotionEnabled(),
		"emotion_max_distance": s.tuning.GetEmotionMaxDistance(),
		"ema_prompt_slots":     s.tuning.GetEMAPromptSlots(),
		"ema_stress_threshold": s.tuning.GetEMAStressThreshold(),
		"ema_min_prompt_gap":   s.tuning.GetEMAMinPromptGap().String(),
		"ema_daily_prompt_cap": s.tuning.GetEMADailyPromptCap(),
	})
}
