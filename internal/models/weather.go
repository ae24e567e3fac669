package models

import "time"

// DateLayout is the calendar date format accepted for start_date/end_date.
const DateLayout = "2006-01-02"

// Variable is an Open-Meteo hourly variable name.
type Variable string

const (
	VariableTemperature         Variable = "temperature_2m"
	VariableRelativeHumidity    Variable = "relative_humidity_2m"
	VariableDewPoint            Variable = "dew_point_2m"
	VariableApparentTemperature Variable = "apparent_temperature"
	VariablePrecipitation       Variable = "precipitation"
	VariableRain                Variable = "rain"
	VariableSnowfall            Variable = "snowfall"
	VariablePressureMSL         Variable = "pressure_msl"
	VariableSurfacePressure     Variable = "surface_pressure"
	VariableCloudCover          Variable = "cloud_cover"
	VariableWindSpeed           Variable = "wind_speed_10m"
	VariableWindDirection       Variable = "wind_direction_10m"
	VariableWindGusts           Variable = "wind_gusts_10m"
	VariableWeatherCode         Variable = "weather_code"
	VariableVisibility          Variable = "visibility"
)

// DefaultChartVariable is plotted when /chart is called without a variable.
const DefaultChartVariable = VariableTemperature

var supportedVariables = map[Variable]struct{}{
	VariableTemperature:         {},
	VariableRelativeHumidity:    {},
	VariableDewPoint:            {},
	VariableApparentTemperature: {},
	VariablePrecipitation:       {},
	VariableRain:                {},
	VariableSnowfall:            {},
	VariablePressureMSL:         {},
	VariableSurfacePressure:     {},
	VariableCloudCover:          {},
	VariableWindSpeed:           {},
	VariableWindDirection:       {},
	VariableWindGusts:           {},
	VariableWeatherCode:         {},
	VariableVisibility:          {},
}

// Supported reports whether v is a provider-recognized hourly field.
func (v Variable) Supported() bool {
	_, ok := supportedVariables[v]
	return ok
}

// Location is a validated coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DateRange is an inclusive range of calendar days (UTC). Start <= End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// RenderRequest is the typed form of an inbound query, built once at the HTTP boundary.
type RenderRequest struct {
	Location  Location
	Variable  Variable
	DateRange *DateRange // nil selects the forecast endpoint
}

// TimeSeries is one variable over time. Timestamps are ascending and unique;
// Values has the same length, nil meaning the provider reported no value.
type TimeSeries struct {
	Timestamps []string   `json:"times"`
	Values     []*float64 `json:"values"`
	Unit       string     `json:"unit,omitempty"`
}

// Len returns the number of points in the series.
func (s TimeSeries) Len() int {
	return len(s.Timestamps)
}

// CurrentConditions is the provider's instantaneous observation.
type CurrentConditions struct {
	Temperature   float64  `json:"temperature"`
	WindSpeed     float64  `json:"windSpeed"`
	WeatherCode   int      `json:"weatherCode"`
	ObservedAt    string   `json:"observedAt"`
	WindDirection *float64 `json:"windDirection,omitempty"`
	IsDay         *bool    `json:"isDay,omitempty"`
}
