package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/client"
	"github.com/kjstillabower/weather-viz-service/internal/config"
	httphandler "github.com/kjstillabower/weather-viz-service/internal/http"
	"github.com/kjstillabower/weather-viz-service/internal/lifecycle"
	"github.com/kjstillabower/weather-viz-service/internal/observability"
	"github.com/kjstillabower/weather-viz-service/internal/render"
	"github.com/kjstillabower/weather-viz-service/internal/service"
)

func main() {
	logger, err := observability.NewLogger("weather-viz-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	selector, err := client.NewEndpointSelector(cfg.ForecastAPIURL, cfg.ArchiveAPIURL)
	if err != nil {
		logger.Fatal("endpoint selector", zap.Error(err))
	}
	weatherClient := client.NewOpenMeteoClient(cfg.UpstreamTimeout, logger)
	if cfg.BreakerEnabled {
		weatherClient.SetCircuitBreaker(client.NewCircuitBreaker(client.BreakerConfig{
			FailureThreshold: cfg.BreakerFailureThreshold,
			OpenTimeout:      cfg.BreakerOpenTimeout,
		}, logger))
		observability.CircuitBreakerState.WithLabelValues(client.BreakerComponent).Set(0)
		logger.Info("circuit breaker enabled",
			zap.Uint32("failure_threshold", cfg.BreakerFailureThreshold),
			zap.Duration("timeout", cfg.BreakerOpenTimeout))
	}
	weatherService := service.NewWeatherService(selector, weatherClient)

	chartRenderer := render.NewAdmission(&render.ExternalProcessRenderer{
		Command:        cfg.RenderCommand,
		Args:           cfg.RenderArgs,
		Env:            cfg.RenderEnv,
		ContentType:    cfg.RenderContentType,
		Timeout:        cfg.RenderTimeout,
		KillGrace:      cfg.RenderKillGrace,
		MaxOutputBytes: cfg.RenderMaxOutputBytes,
	}, cfg.RenderMaxConcurrent, cfg.RenderQueueTimeout)
	seriesRenderer := &render.ClientDelegatedRenderer{Series: weatherService}
	logger.Info("chart renderer configured",
		zap.String("command", cfg.RenderCommand),
		zap.Int64("max_concurrent", cfg.RenderMaxConcurrent),
		zap.Duration("queue_timeout", cfg.RenderQueueTimeout))

	healthConfig := &httphandler.HealthConfig{
		Window:                  cfg.HealthWindow,
		DegradedErrorPct:        cfg.DegradedErrorPct,
		OverloadRejectThreshold: cfg.OverloadRejectThreshold,
		RenderSlots:             chartRenderer,
	}
	if cfg.BreakerEnabled {
		healthConfig.Breaker = weatherClient
	}
	observability.RegisterTrafficGauges(cfg.HealthWindow)

	handler := httphandler.NewHandler(weatherService, chartRenderer, seriesRenderer, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete", zap.Duration("drained_for", lifecycle.DrainingFor()))
}
