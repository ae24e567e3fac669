package normalize

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/kjstillabower/weather-viz-service/internal/client"
	"github.com/kjstillabower/weather-viz-service/internal/models"
)

// Current extracts the current_weather block of a forecast response.
// temperature, windspeed, weathercode and time are required; JSON null counts as missing.
func Current(raw client.RawResponse) (models.CurrentConditions, error) {
	cw, err := object(raw, "current_weather", "current_weather")
	if err != nil {
		return models.CurrentConditions{}, err
	}

	var out models.CurrentConditions
	if err := decodeField(cw, "temperature", "current_weather.temperature", &out.Temperature); err != nil {
		return models.CurrentConditions{}, err
	}
	if err := decodeField(cw, "windspeed", "current_weather.windspeed", &out.WindSpeed); err != nil {
		return models.CurrentConditions{}, err
	}

	var code float64
	if err := decodeField(cw, "weathercode", "current_weather.weathercode", &code); err != nil {
		return models.CurrentConditions{}, err
	}
	if code != math.Trunc(code) {
		return models.CurrentConditions{}, fail(KindInvalidField, "current_weather.weathercode",
			fmt.Errorf("%v is not an integer", code))
	}
	out.WeatherCode = int(code)

	if err := decodeField(cw, "time", "current_weather.time", &out.ObservedAt); err != nil {
		return models.CurrentConditions{}, err
	}

	if v, ok := field(cw, "winddirection"); ok {
		var dir float64
		if json.Unmarshal(v, &dir) == nil {
			out.WindDirection = &dir
		}
	}
	if v, ok := field(cw, "is_day"); ok {
		if isDay, ok := decodeFlag(v); ok {
			out.IsDay = &isDay
		}
	}
	return out, nil
}

// decodeFlag accepts 0/1 or true/false.
func decodeFlag(v json.RawMessage) (bool, bool) {
	var n int
	if json.Unmarshal(v, &n) == nil {
		return n != 0, true
	}
	var b bool
	if json.Unmarshal(v, &b) == nil {
		return b, true
	}
	return false, false
}
