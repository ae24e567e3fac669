package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/weather-viz-service/internal/client"
	"github.com/kjstillabower/weather-viz-service/internal/models"
)

// Series extracts hourly.time and hourly[variable] from an Open-Meteo response.
// Values pass through unchanged, nulls included. The unit comes from hourly_units
// when the provider sends one.
func Series(raw client.RawResponse, variable models.Variable) (models.TimeSeries, error) {
	hourly, err := object(raw, "hourly", "hourly")
	if err != nil {
		return models.TimeSeries{}, err
	}

	timePath := "hourly.time"
	var times []string
	if err := decodeField(hourly, "time", timePath, &times); err != nil {
		return models.TimeSeries{}, err
	}

	valuesPath := "hourly." + string(variable)
	var values []*float64
	if err := decodeField(hourly, string(variable), valuesPath, &values); err != nil {
		return models.TimeSeries{}, err
	}

	if len(times) != len(values) {
		return models.TimeSeries{}, fail(KindLengthMismatch, valuesPath,
			fmt.Errorf("%d timestamps, %d values", len(times), len(values)))
	}
	if err := checkAscending(times, timePath); err != nil {
		return models.TimeSeries{}, err
	}

	if times == nil {
		times = []string{}
		values = []*float64{}
	}
	return models.TimeSeries{
		Timestamps: times,
		Values:     values,
		Unit:       unitFor(raw, variable),
	}, nil
}

// checkAscending compares timestamps as strings. ISO-8601 values of one layout
// sort lexically in time order.
func checkAscending(times []string, path string) error {
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return fail(KindUnordered, path, fmt.Errorf("index %d: %s", i, times[i]))
		}
	}
	return nil
}

// unitFor is lenient: a missing or malformed hourly_units block yields no unit.
func unitFor(raw client.RawResponse, variable models.Variable) string {
	v, ok := field(raw, "hourly_units")
	if !ok {
		return ""
	}
	var units map[string]json.RawMessage
	if err := json.Unmarshal(v, &units); err != nil {
		return ""
	}
	var unit string
	if u, ok := field(units, string(variable)); ok {
		_ = json.Unmarshal(u, &unit)
	}
	return unit
}
