package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/client"
	"github.com/kjstillabower/weather-viz-service/internal/normalize"
	"github.com/kjstillabower/weather-viz-service/internal/observability"
	"github.com/kjstillabower/weather-viz-service/internal/render"
	"github.com/kjstillabower/weather-viz-service/internal/traffic"
	"github.com/kjstillabower/weather-viz-service/internal/validation"
)

// Error codes returned in the error envelope.
const (
	CodeInvalidRequest          = "INVALID_REQUEST"
	CodeUpstreamError           = "UPSTREAM_ERROR"
	CodeUpstreamResponseInvalid = "UPSTREAM_RESPONSE_INVALID"
	CodeRenderFailed            = "RENDER_FAILED"
	CodeRenderOverloaded        = "RENDER_OVERLOADED"
	CodeInternal                = "INTERNAL_ERROR"
)

// errorResponse is the status, code and client-safe message for an error.
type errorResponse struct {
	status  int
	code    string
	message string
}

// classifyError maps the error taxonomy onto the HTTP surface. Messages are fixed
// strings except for invalid requests, whose text is built from parameter names only.
func classifyError(err error) errorResponse {
	var (
		invErr *validation.InvalidRequestError
		rErr   *render.RenderError
		nErr   *normalize.NormalizationError
		upErr  *client.UpstreamError
	)
	switch {
	case errors.As(err, &invErr):
		return errorResponse{http.StatusBadRequest, CodeInvalidRequest, invErr.Error()}
	case errors.As(err, &rErr) && rErr.Kind == render.KindOverloaded:
		return errorResponse{http.StatusInternalServerError, CodeRenderOverloaded, "Render capacity exhausted, retry later"}
	case errors.As(err, &rErr):
		return errorResponse{http.StatusInternalServerError, CodeRenderFailed, "Chart rendering failed"}
	case errors.As(err, &nErr):
		return errorResponse{http.StatusInternalServerError, CodeUpstreamResponseInvalid, "Weather provider returned an unexpected response"}
	case errors.As(err, &upErr):
		return errorResponse{http.StatusInternalServerError, CodeUpstreamError, "Unable to fetch weather data"}
	default:
		return errorResponse{http.StatusInternalServerError, CodeInternal, "Internal server error"}
	}
}

// writePipelineError writes the error envelope for err and logs the full error
// server-side. Nothing from err beyond the classification reaches the client.
func writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	resp := classifyError(err)
	logger := observability.LoggerFromContext(r.Context())
	fields := []zap.Field{zap.String("code", resp.code), zap.Error(err)}
	switch {
	case resp.status < http.StatusInternalServerError:
		logger.Debug("request rejected", fields...)
	case isCanceled(err):
		logger.Info("request abandoned", fields...)
	default:
		fields = append(fields, zap.String("category", string(client.CategorizeError(err))))
		logger.Warn("request failed", fields...)
	}
	writeError(w, r, resp.status, resp.code, resp.message)
}

// recordOutcome feeds a pipeline failure to the health error rate. Overload
// rejections are already counted by admission control and caller
// cancellations say nothing about service health.
func recordOutcome(err error) {
	if isCanceled(err) {
		return
	}
	var rErr *render.RenderError
	if errors.As(err, &rErr) && rErr.Kind == render.KindOverloaded {
		return
	}
	var invErr *validation.InvalidRequestError
	if errors.As(err, &invErr) {
		return
	}
	traffic.RecordError()
}

// isCanceled reports whether err stems from the caller going away.
func isCanceled(err error) bool {
	var rErr *render.RenderError
	if errors.As(err, &rErr) && rErr.Kind == render.KindCanceled {
		return true
	}
	return errors.Is(err, context.Canceled)
}
