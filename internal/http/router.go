package http

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/observability"
)

// RouterConfig holds the cross-cutting settings applied around the routes.
type RouterConfig struct {
	// RequestTimeout bounds /conditions, /series and /chart.
	RequestTimeout time.Duration
	// AllowedOrigins for CORS. Empty leaves CORS headers off, so browsers block cross-origin reads.
	AllowedOrigins []string
}

// NewRouter builds the full HTTP handler: routes, per-route middleware, then
// panic recovery, CORS and gzip around everything.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/conditions", h.GetConditions).Methods(http.MethodGet)
	api.HandleFunc("/series", h.GetSeries).Methods(http.MethodGet)
	api.HandleFunc("/chart", h.GetChart).Methods(http.MethodGet)

	var root http.Handler = router
	// handlers.CORS treats an empty origin list as "*".
	if len(cfg.AllowedOrigins) > 0 {
		root = handlers.CORS(
			handlers.AllowedOrigins(cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"X-Correlation-ID"}),
			handlers.ExposedHeaders([]string{"X-Correlation-ID"}),
		)(root)
	}
	root = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger)),
	)(root)
	return gzhttp.GzipHandler(root)
}
