package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/client"
	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/normalize"
	"github.com/kjstillabower/weather-viz-service/internal/observability"
)

// WeatherService runs the fetch pipeline: select endpoint, fetch, normalize.
// It holds no per-request state and is safe for concurrent use.
type WeatherService struct {
	selector *client.EndpointSelector
	fetcher  client.Fetcher
}

// NewWeatherService creates a WeatherService over the given selector and upstream fetcher.
func NewWeatherService(selector *client.EndpointSelector, fetcher client.Fetcher) *WeatherService {
	return &WeatherService{selector: selector, fetcher: fetcher}
}

// GetSeries fetches and normalizes the hourly series for req. Requests with a
// DateRange go to the archive endpoint, others to the forecast endpoint.
func (s *WeatherService) GetSeries(ctx context.Context, req models.RenderRequest) (models.TimeSeries, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	ep, err := s.selector.Select(client.QueryFor(req))
	if err != nil {
		return models.TimeSeries{}, err
	}
	raw, err := s.fetcher.Fetch(ctx, ep)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("fetch %s series: %w", ep.Kind, err)
	}
	series, err := normalize.Series(raw, req.Variable)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("normalize %s series: %w", ep.Kind, err)
	}

	logger.Debug("series served",
		zap.String("endpoint", ep.Kind.String()),
		zap.String("variable", string(req.Variable)),
		zap.Int("points", series.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return series, nil
}

// GetConditions fetches the current_weather block for loc from the forecast endpoint.
func (s *WeatherService) GetConditions(ctx context.Context, loc models.Location) (models.CurrentConditions, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	ep, err := s.selector.Select(client.Query{Location: loc, Current: true})
	if err != nil {
		return models.CurrentConditions{}, err
	}
	raw, err := s.fetcher.Fetch(ctx, ep)
	if err != nil {
		return models.CurrentConditions{}, fmt.Errorf("fetch current conditions: %w", err)
	}
	current, err := normalize.Current(raw)
	if err != nil {
		return models.CurrentConditions{}, fmt.Errorf("normalize current conditions: %w", err)
	}

	logger.Debug("conditions served", zap.Duration("duration", time.Since(start)))
	return current, nil
}
