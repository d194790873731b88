// Package http carries the dashboard's HTTP surface: location and chat
// endpoints, the AI proxy, health, and the middleware chain.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/weathersense/weathersense/internal/ai"
	"github.com/weathersense/weathersense/internal/chat"
	"github.com/weathersense/weathersense/internal/forecast"
	"github.com/weathersense/weathersense/internal/geo"
	"github.com/weathersense/weathersense/internal/lifecycle"
	"github.com/weathersense/weathersense/internal/models"
	"github.com/weathersense/weathersense/internal/observability"
	"github.com/weathersense/weathersense/internal/present"
	"github.com/weathersense/weathersense/internal/prompt"
	"github.com/weathersense/weathersense/internal/session"
	"github.com/weathersense/weathersense/internal/traffic"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	RateLimitBurst       int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// CachePing, when set, checks cache reachability. Used when the
	// forecast cache backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	resolver  *geo.Resolver
	forecasts *forecast.Service
	presenter *present.Presenter
	prompts   *prompt.Builder // nil when the prompt file failed to load
	gemini    *ai.GeminiClient
	gateway   *ai.Gateway
	sessions  *session.Registry
	logger    *zap.Logger
	validate  *validator.Validate

	healthConfig     *HealthConfig
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	resolver *geo.Resolver,
	forecasts *forecast.Service,
	presenter *present.Presenter,
	prompts *prompt.Builder,
	gemini *ai.GeminiClient,
	gateway *ai.Gateway,
	sessions *session.Registry,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		resolver:     resolver,
		forecasts:    forecasts,
		presenter:    presenter,
		prompts:      prompts,
		gemini:       gemini,
		gateway:      gateway,
		sessions:     sessions,
		healthConfig: healthConfig,
		logger:       logger,
		validate:     validator.New(),
	}
}

type zipRequest struct {
	SessionID string `json:"session_id"`
	Zip       string `json:"zip" validate:"required"`
}

type deviceRequest struct {
	SessionID string  `json:"session_id"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	// Error carries the browser's geolocation failure class when the fix
	// could not be obtained: permission_denied, timeout, or unavailable.
	Error string `json:"error"`
}

type locationResponse struct {
	SessionID string            `json:"session_id"`
	PlaceName string            `json:"place_name"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Fragments present.Fragments `json:"fragments"`
	NoData    bool              `json:"no_data,omitempty"`
	// Stale marks a response whose result was not committed because a
	// newer lookup started before this one finished.
	Stale bool `json:"stale,omitempty"`
}

// PostLocationZip handles POST /api/location/zip.
func (h *Handler) PostLocationZip(w http.ResponseWriter, r *http.Request) {
	var req zipRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, ctrl := h.sessions.Get(req.SessionID)
	token := ctrl.BeginLookup()

	loc, err := h.resolver.ResolveFromPostalCode(r.Context(), req.Zip)
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrInvalidInput):
			observability.LocationLookupsTotal.WithLabelValues("zip", "invalid").Inc()
			writeError(w, r, http.StatusBadRequest, "INVALID_POSTAL_CODE", "ZIP code must be exactly five digits")
		case errors.Is(err, geo.ErrNotFound):
			observability.LocationLookupsTotal.WithLabelValues("zip", "not_found").Inc()
			writeError(w, r, http.StatusNotFound, "POSTAL_CODE_NOT_FOUND", "No location found for that ZIP code")
		default:
			observability.LocationLookupsTotal.WithLabelValues("zip", "error").Inc()
			traffic.RecordError()
			writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to resolve the ZIP code right now")
		}
		return
	}
	observability.LocationLookupsTotal.WithLabelValues("zip", "success").Inc()

	h.completeLookup(w, r, id, ctrl, token, loc)
}

// PostLocationDevice handles POST /api/location/device.
func (h *Handler) PostLocationDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, ctrl := h.sessions.Get(req.SessionID)
	token := ctrl.BeginLookup()

	fix := geo.DeviceFix{Latitude: req.Latitude, Longitude: req.Longitude, Err: req.Error}
	loc, err := h.resolver.ResolveFromDevice(r.Context(), fix)
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrPermissionDenied):
			observability.LocationLookupsTotal.WithLabelValues("device", "permission_denied").Inc()
			writeError(w, r, http.StatusUnprocessableEntity, "LOCATION_PERMISSION_DENIED", "Location permission was denied")
		case errors.Is(err, geo.ErrTimeout):
			observability.LocationLookupsTotal.WithLabelValues("device", "timeout").Inc()
			writeError(w, r, http.StatusUnprocessableEntity, "LOCATION_TIMEOUT", "Timed out waiting for a location fix")
		case errors.Is(err, geo.ErrInvalidInput):
			observability.LocationLookupsTotal.WithLabelValues("device", "invalid").Inc()
			writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "Coordinates are out of range")
		default:
			observability.LocationLookupsTotal.WithLabelValues("device", "unavailable").Inc()
			writeError(w, r, http.StatusUnprocessableEntity, "LOCATION_UNAVAILABLE", "Device location is unavailable")
		}
		return
	}
	observability.LocationLookupsTotal.WithLabelValues("device", "success").Inc()

	h.completeLookup(w, r, id, ctrl, token, loc)
}

// completeLookup fetches the forecast for a resolved location, renders it,
// and commits the result to the session. A lookup superseded by a newer one
// still returns its own render, flagged stale, without touching state.
func (h *Handler) completeLookup(w http.ResponseWriter, r *http.Request, id string, ctrl *session.Controller, token uint64, loc models.Location) {
	days, err := h.forecasts.GetForecast(r.Context(), loc)
	if err != nil {
		if errors.Is(err, forecast.ErrNoData) {
			frags, rerr := h.presenter.RenderNoData()
			if rerr != nil {
				writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render the dashboard")
				return
			}
			committed := ctrl.Commit(token, loc, nil, "")
			traffic.RecordSuccess()
			writeJSON(w, http.StatusOK, locationResponse{
				SessionID: id,
				PlaceName: loc.PlaceName,
				Latitude:  loc.Latitude,
				Longitude: loc.Longitude,
				Fragments: frags,
				NoData:    true,
				Stale:     !committed,
			})
			return
		}
		traffic.RecordError()
		writeServiceError(w, r, err)
		return
	}

	contextText := present.BuildContextText(loc, days)
	frags, err := h.presenter.Render(loc, days)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render the dashboard")
		return
	}

	committed := ctrl.Commit(token, loc, days, contextText)
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, locationResponse{
		SessionID: id,
		PlaceName: loc.PlaceName,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Fragments: frags,
		Stale:     !committed,
	})
}

type summaryRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// PostSummary handles POST /api/summary.
func (h *Handler) PostSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !h.decode(w, r, &req) {
		return
	}

	_, ctrl := h.sessions.Get(req.SessionID)
	contextText := ctrl.ContextText()
	if contextText == "" {
		writeError(w, r, http.StatusBadRequest, "NO_LOCATION", "Resolve a location before requesting a summary")
		return
	}

	reply := h.askModel(r.Context(), models.PromptSummary, contextText, "")
	writeJSON(w, http.StatusOK, map[string]string{"summary": reply})
}

type chatRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID  string            `json:"session_id"`
	Reply      string            `json:"reply"`
	Transcript []models.ChatTurn `json:"transcript"`
}

// PostChat handles POST /api/chat.
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, ctrl := h.sessions.Get(req.SessionID)
	conv := ctrl.Chat()

	trimmed, err := conv.Begin(req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrBusy) {
			writeError(w, r, http.StatusConflict, "RESPONSE_PENDING", "A previous message is still awaiting a reply")
			return
		}
		writeError(w, r, http.StatusBadRequest, "EMPTY_MESSAGE", "Message must contain non-whitespace text")
		return
	}
	observability.ChatTurnsTotal.WithLabelValues("user").Inc()

	reply := h.askModel(r.Context(), models.PromptChat, trimmed, ctrl.ContextText())
	if conv.Complete(reply) {
		observability.ChatTurnsTotal.WithLabelValues("assistant").Inc()
	}

	// A location lookup may commit while the reply is in flight; the commit
	// resets the conversation and Complete drops the turn. The reply still
	// goes back to the caller, alongside the now-empty transcript.
	transcript := conv.Transcript()
	if len(transcript) > 0 {
		reply = transcript[len(transcript)-1].Text
	} else if reply == "" {
		reply = chat.NoResponsePlaceholder
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:  id,
		Reply:      reply,
		Transcript: transcript,
	})
}

// askModel builds a prompt and runs it through the gateway. Generation
// problems come back as displayable text, never as an error; the dashboard
// shows them inline.
func (h *Handler) askModel(ctx context.Context, kind models.PromptKind, input, contextText string) string {
	if h.prompts == nil {
		return "Error: prompt templates are unavailable"
	}
	promptText, err := h.prompts.Build(kind, input, contextText)
	if err != nil {
		return "Error: prompt templates are unavailable"
	}
	return h.gateway.Query(ctx, promptText)
}

type geminiRequest struct {
	Prompt string `json:"prompt"`
}

// PostGemini handles POST /api/gemini, the proxy the Gateway calls. Its
// request and error bodies are plain {prompt} / {error, details} objects,
// not the dashboard error envelope, to stay compatible with clients of the
// original endpoint.
func (h *Handler) PostGemini(w http.ResponseWriter, r *http.Request) {
	var req geminiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		observability.AIProxyRequestsTotal.WithLabelValues("missing_prompt").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Prompt is required"})
		return
	}

	text, err := h.gemini.Generate(r.Context(), req.Prompt)
	if err != nil {
		observability.AIProxyRequestsTotal.WithLabelValues("upstream_error").Inc()
		traffic.RecordError()
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "Failed to contact Gemini API",
			"details": err.Error(),
		})
		return
	}

	outcome := "success"
	if h.gemini.Mocked() {
		outcome = "mocked"
	}
	observability.AIProxyRequestsTotal.WithLabelValues(outcome).Inc()
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]string{"response": text})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["forecast_api"] = "unhealthy"
	} else {
		checks["forecast_api"] = "healthy"
	}
	if h.gemini.Mocked() {
		checks["gemini"] = "mocked"
	} else {
		checks["gemini"] = "configured"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weathersense",
		"version":   "dev",
		"checks":    checks,
		"sessions":  h.sessions.Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
	if h.healthConfig.RateLimitBurst > 0 && float64(traffic.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// decode parses and validates a JSON request body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Debug("request validation failed", zap.Error(err))
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body failed validation")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard dashboard error envelope with code,
// message, and the request's correlation ID when available.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 for upstream failures, logging the cause at
// DEBUG when a request logger is present.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch forecast data")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
