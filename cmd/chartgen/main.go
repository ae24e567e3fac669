// Command chartgen fetches one hourly series from Open-Meteo and writes it to
// stdout as an SVG line chart. It is the render process spawned by /chart.
//
// Exit status: 0 on success, 1 on fetch or data failure, 2 on bad arguments.
// Diagnostics go to stderr as JSON logs; stdout carries only the image.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/chart"
	"github.com/kjstillabower/weather-viz-service/internal/client"
	"github.com/kjstillabower/weather-viz-service/internal/config"
	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/observability"
	"github.com/kjstillabower/weather-viz-service/internal/service"
	"github.com/kjstillabower/weather-viz-service/internal/validation"
)

const (
	exitFailure = 1
	exitUsage   = 2

	defaultUpstreamTimeout = 10 * time.Second
)

func main() {
	logger, err := observability.NewLogger("chartgen")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(exitFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, logger)
	stop()
	_ = logger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *zap.Logger) int {
	fs := flag.NewFlagSet("chartgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lat := fs.String("lat", "", "latitude in decimal degrees")
	lon := fs.String("lon", "", "longitude in decimal degrees")
	variable := fs.String("variable", string(models.DefaultChartVariable), "Open-Meteo hourly variable")
	startDate := fs.String("start-date", "", "first day of an archive range (YYYY-MM-DD)")
	endDate := fs.String("end-date", "", "last day of an archive range (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	q := url.Values{}
	set := func(name, v string) {
		if v != "" {
			q.Set(name, v)
		}
	}
	set(validation.ParamLat, *lat)
	set(validation.ParamLon, *lon)
	set(validation.ParamVariable, *variable)
	set(validation.ParamStartDate, *startDate)
	set(validation.ParamEndDate, *endDate)
	req, err := validation.ParseRenderRequest(q, validation.Rules{DefaultVariable: models.DefaultChartVariable})
	if err != nil {
		logger.Error("invalid arguments", zap.Error(err))
		fmt.Fprintf(stderr, "chartgen: %v\n", err)
		return exitUsage
	}

	timeout, err := upstreamTimeout()
	if err != nil {
		logger.Error("invalid UPSTREAM_TIMEOUT", zap.Error(err))
		return exitUsage
	}
	selector, err := client.NewEndpointSelector(
		envOr("FORECAST_API_URL", config.DefaultForecastURL),
		envOr("ARCHIVE_API_URL", config.DefaultArchiveURL),
	)
	if err != nil {
		logger.Error("endpoint configuration", zap.Error(err))
		return exitUsage
	}
	svc := service.NewWeatherService(selector, client.NewOpenMeteoClient(timeout, logger))

	ctx = observability.WithLogger(ctx, logger)
	series, err := svc.GetSeries(ctx, req)
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.String("variable", string(req.Variable))}
		if !errors.Is(err, context.Canceled) {
			fields = append(fields, zap.String("category", string(client.CategorizeError(err))))
		}
		logger.Error("series fetch failed", fields...)
		return exitFailure
	}

	if _, err := stdout.Write(chart.RenderSVG(series, string(req.Variable))); err != nil {
		logger.Error("write chart", zap.Error(err))
		return exitFailure
	}
	logger.Debug("chart written", zap.Int("points", series.Len()))
	return 0
}

func upstreamTimeout() (time.Duration, error) {
	s := os.Getenv("UPSTREAM_TIMEOUT")
	if s == "" {
		return defaultUpstreamTimeout, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
