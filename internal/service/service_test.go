package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/weather-viz-service/internal/client"
	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/normalize"
)

type mockFetcher struct {
	body  string
	err   error
	calls []client.Endpoint
}

func (m *mockFetcher) Fetch(ctx context.Context, ep client.Endpoint) (client.RawResponse, error) {
	m.calls = append(m.calls, ep)
	if m.err != nil {
		return nil, m.err
	}
	var raw client.RawResponse
	if err := json.Unmarshal([]byte(m.body), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func newTestService(t *testing.T, f client.Fetcher) *WeatherService {
	t.Helper()
	sel, err := client.NewEndpointSelector("https://forecast.test/v1/forecast", "https://archive.test/v1/archive")
	require.NoError(t, err)
	return NewWeatherService(sel, f)
}

var berlin = models.Location{Latitude: 52.52, Longitude: 13.41}

func TestWeatherService_GetSeries_Forecast(t *testing.T) {
	f := &mockFetcher{body: `{"hourly": {"time": ["t0", "t1"], "temperature_2m": [1.0, 2.0]}, "hourly_units": {"temperature_2m": "°C"}}`}
	svc := newTestService(t, f)

	ts, err := svc.GetSeries(context.Background(), models.RenderRequest{Location: berlin, Variable: models.VariableTemperature})
	require.NoError(t, err)
	assert.Equal(t, []string{"t0", "t1"}, ts.Timestamps)
	assert.Equal(t, "°C", ts.Unit)

	require.Len(t, f.calls, 1)
	assert.Equal(t, client.EndpointForecast, f.calls[0].Kind)
	u, err := url.Parse(f.calls[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "forecast.test", u.Host)
	assert.Equal(t, "temperature_2m", u.Query().Get("hourly"))
}

func TestWeatherService_GetSeries_Archive(t *testing.T) {
	f := &mockFetcher{body: `{"hourly": {"time": ["2024-01-01T00:00"], "rain": [0.2]}}`}
	svc := newTestService(t, f)

	req := models.RenderRequest{
		Location: berlin,
		Variable: models.VariableRain,
		DateRange: &models.DateRange{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	_, err := svc.GetSeries(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, f.calls, 1)
	assert.Equal(t, client.EndpointArchive, f.calls[0].Kind)
}

func TestWeatherService_GetSeries_UpstreamError(t *testing.T) {
	upErr := &client.UpstreamError{Kind: client.UpstreamStatus, Status: 502}
	svc := newTestService(t, &mockFetcher{err: upErr})

	_, err := svc.GetSeries(context.Background(), models.RenderRequest{Location: berlin, Variable: models.VariableTemperature})
	var got *client.UpstreamError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, 502, got.Status)
}

func TestWeatherService_GetSeries_NormalizationError(t *testing.T) {
	svc := newTestService(t, &mockFetcher{body: `{"hourly": {"time": ["t0"], "temperature_2m": [1.0, 2.0]}}`})

	_, err := svc.GetSeries(context.Background(), models.RenderRequest{Location: berlin, Variable: models.VariableTemperature})
	var nErr *normalize.NormalizationError
	require.True(t, errors.As(err, &nErr))
	assert.Equal(t, normalize.KindLengthMismatch, nErr.Kind)
}

func TestWeatherService_GetSeries_InvalidSkipsFetch(t *testing.T) {
	f := &mockFetcher{}
	svc := newTestService(t, f)

	_, err := svc.GetSeries(context.Background(), models.RenderRequest{Location: berlin, Variable: "sunshine"})
	require.Error(t, err)
	assert.Empty(t, f.calls)
}

func TestWeatherService_GetConditions(t *testing.T) {
	f := &mockFetcher{body: `{"current_weather": {"temperature": 21.5, "windspeed": 3.1, "weathercode": 1, "time": "2024-06-01T12:00"}}`}
	svc := newTestService(t, f)

	got, err := svc.GetConditions(context.Background(), berlin)
	require.NoError(t, err)
	assert.Equal(t, 21.5, got.Temperature)
	assert.Equal(t, 3.1, got.WindSpeed)
	assert.Equal(t, 1, got.WeatherCode)
	assert.Equal(t, "2024-06-01T12:00", got.ObservedAt)

	require.Len(t, f.calls, 1)
	u, err := url.Parse(f.calls[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "true", u.Query().Get("current_weather"))
}

func TestWeatherService_GetConditions_MissingBlock(t *testing.T) {
	svc := newTestService(t, &mockFetcher{body: `{"hourly": {}}`})
	_, err := svc.GetConditions(context.Background(), berlin)
	var nErr *normalize.NormalizationError
	require.True(t, errors.As(err, &nErr))
	assert.Equal(t, normalize.KindMissingField, nErr.Kind)
	assert.Equal(t, "current_weather", nErr.Field)
}
