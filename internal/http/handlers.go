package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/lifecycle"
	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/observability"
	"github.com/kjstillabower/weather-viz-service/internal/render"
	"github.com/kjstillabower/weather-viz-service/internal/service"
	"github.com/kjstillabower/weather-viz-service/internal/traffic"
	"github.com/kjstillabower/weather-viz-service/internal/validation"
)

// BreakerStatus reports the upstream circuit breaker state. ok is false when no breaker is configured.
type BreakerStatus interface {
	BreakerState() (state gobreaker.State, ok bool)
}

// RenderSlots reports render admission usage.
type RenderSlots interface {
	Capacity() int64
	InUse() int64
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	Window                  time.Duration
	DegradedErrorPct        int
	OverloadRejectThreshold int
	// Breaker, when set, marks the service degraded while the upstream circuit is open.
	Breaker BreakerStatus
	// RenderSlots, when set, is reported under checks.renderSlots.
	RenderSlots RenderSlots
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService   *service.WeatherService
	chartRenderer    render.Renderer
	seriesRenderer   render.Renderer
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. chartRenderer serves /chart and seriesRenderer serves /series.
func NewHandler(
	weatherService *service.WeatherService,
	chartRenderer render.Renderer,
	seriesRenderer render.Renderer,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		weatherService: weatherService,
		chartRenderer:  chartRenderer,
		seriesRenderer: seriesRenderer,
		healthConfig:   healthConfig,
		logger:         logger,
	}
}

type conditionsResponse struct {
	Current models.CurrentConditions `json:"current"`
}

// GetConditions handles GET /conditions?lat&lon.
func (h *Handler) GetConditions(w http.ResponseWriter, r *http.Request) {
	loc, err := validation.ParseLocation(r.URL.Query())
	if err != nil {
		writePipelineError(w, r, err)
		return
	}
	current, err := h.weatherService.GetConditions(r.Context(), loc)
	if err != nil {
		recordOutcome(err)
		writePipelineError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, conditionsResponse{Current: current})
}

// GetSeries handles GET /series. The series is returned as JSON for the client to draw.
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	req, err := validation.ParseRenderRequest(r.URL.Query(), validation.Rules{RequireVariable: true})
	if err != nil {
		writePipelineError(w, r, err)
		return
	}
	h.serveRender(w, r, h.seriesRenderer, req)
}

// GetChart handles GET /chart. The image is produced by the external chart program.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	req, err := validation.ParseRenderRequest(r.URL.Query(), validation.Rules{DefaultVariable: models.DefaultChartVariable})
	if err != nil {
		writePipelineError(w, r, err)
		return
	}
	h.serveRender(w, r, h.chartRenderer, req)
}

func (h *Handler) serveRender(w http.ResponseWriter, r *http.Request, renderer render.Renderer, req models.RenderRequest) {
	res, err := renderer.Render(r.Context(), req)
	if err != nil {
		recordOutcome(err)
		writePipelineError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
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

	checks := map[string]string{"upstream": "healthy"}
	if h.healthConfig != nil {
		if h.healthConfig.Breaker != nil {
			if state, ok := h.healthConfig.Breaker.BreakerState(); ok {
				checks["upstream"] = breakerCheck(state)
			}
		}
		if h.healthConfig.RenderSlots != nil {
			checks["renderSlots"] = fmt.Sprintf("%d/%d in use", h.healthConfig.RenderSlots.InUse(), h.healthConfig.RenderSlots.Capacity())
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-viz-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded (circuit open, then error rate) > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	window := h.healthConfig.Window
	if window > 0 && h.healthConfig.OverloadRejectThreshold > 0 {
		if traffic.RejectedCount(window) >= h.healthConfig.OverloadRejectThreshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "render_rejections"}
		}
	}
	if h.healthConfig.Breaker != nil {
		if state, ok := h.healthConfig.Breaker.BreakerState(); ok && state == gobreaker.StateOpen {
			return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
		}
	}
	if window > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(window)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func breakerCheck(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return "unhealthy"
	case gobreaker.StateHalfOpen:
		return "recovering"
	default:
		return "healthy"
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
