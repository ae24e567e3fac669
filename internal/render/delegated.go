package render

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/observability"
)

// SeriesSource supplies the normalized series for a request.
type SeriesSource interface {
	GetSeries(ctx context.Context, req models.RenderRequest) (models.TimeSeries, error)
}

// ClientDelegatedRenderer returns the series as JSON and leaves drawing to the client.
// Equal series always encode to identical bytes.
type ClientDelegatedRenderer struct {
	Series SeriesSource
}

func (r *ClientDelegatedRenderer) Render(ctx context.Context, req models.RenderRequest) (Result, error) {
	start := time.Now()
	defer func() {
		observability.RenderDuration.WithLabelValues(rendererDelegated).Observe(time.Since(start).Seconds())
	}()

	series, err := r.Series.GetSeries(ctx, req)
	if err != nil {
		observability.RenderTotal.WithLabelValues(rendererDelegated, "error").Inc()
		return Result{}, err
	}
	body, err := json.Marshal(series)
	if err != nil {
		observability.RenderTotal.WithLabelValues(rendererDelegated, "error").Inc()
		return Result{}, fmt.Errorf("encode series: %w", err)
	}
	observability.RenderTotal.WithLabelValues(rendererDelegated, "success").Inc()
	return Result{ContentType: "application/json", Body: body}, nil
}
