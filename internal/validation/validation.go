package validation

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-viz-service/internal/models"
)

// Query parameter names accepted by the HTTP surface.
const (
	ParamLat       = "lat"
	ParamLon       = "lon"
	ParamVariable  = "variable"
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
)

// ErrInvalidRequest matches every *InvalidRequestError via errors.Is.
var ErrInvalidRequest = errors.New("invalid request")

// InvalidRequestError reports caller input that is missing or malformed.
// Missing lists absent parameter names in request order; Reason describes anything else.
type InvalidRequestError struct {
	Missing []string
	Reason  string
}

func (e *InvalidRequestError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required parameter(s): " + strings.Join(e.Missing, ", ")
	}
	return e.Reason
}

// Is makes errors.Is(err, ErrInvalidRequest) true for any InvalidRequestError.
func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Invalidf builds an InvalidRequestError with a formatted reason.
func Invalidf(format string, args ...any) error {
	return &InvalidRequestError{Reason: fmt.Sprintf(format, args...)}
}

// Rules controls which parameters ParseRenderRequest requires.
type Rules struct {
	// RequireVariable rejects requests without a variable parameter.
	RequireVariable bool
	// DefaultVariable is used when the variable is optional and absent.
	DefaultVariable models.Variable
}

type locationParams struct {
	Latitude  float64 `query:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `query:"lon" validate:"gte=-180,lte=180"`
}

type renderParams struct {
	Latitude  float64 `query:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `query:"lon" validate:"gte=-180,lte=180"`
	Variable  string  `query:"variable" validate:"required,hourly_variable"`
	StartDate string  `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string  `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("hourly_variable", func(fl validator.FieldLevel) bool {
		return models.Variable(fl.Field().String()).Supported()
	})
	return v
}

// ParseLocation extracts and validates lat/lon.
func ParseLocation(q url.Values) (models.Location, error) {
	if missing := missingParams(q, ParamLat, ParamLon); len(missing) > 0 {
		return models.Location{}, &InvalidRequestError{Missing: missing}
	}
	p, err := bindLocation(q)
	if err != nil {
		return models.Location{}, err
	}
	if err := validate.Struct(p); err != nil {
		return models.Location{}, translate(err)
	}
	return models.Location{Latitude: p.Latitude, Longitude: p.Longitude}, nil
}

// ParseRenderRequest converts query parameters into a RenderRequest.
// All missing required names are reported together before any value is parsed.
func ParseRenderRequest(q url.Values, rules Rules) (models.RenderRequest, error) {
	required := []string{ParamLat, ParamLon}
	if rules.RequireVariable {
		required = append(required, ParamVariable)
	}
	if missing := missingParams(q, required...); len(missing) > 0 {
		return models.RenderRequest{}, &InvalidRequestError{Missing: missing}
	}

	loc, err := bindLocation(q)
	if err != nil {
		return models.RenderRequest{}, err
	}
	p := renderParams{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Variable:  strings.TrimSpace(q.Get(ParamVariable)),
		StartDate: strings.TrimSpace(q.Get(ParamStartDate)),
		EndDate:   strings.TrimSpace(q.Get(ParamEndDate)),
	}
	if p.Variable == "" {
		p.Variable = string(rules.DefaultVariable)
	}
	if (p.StartDate == "") != (p.EndDate == "") {
		if p.StartDate == "" {
			return models.RenderRequest{}, &InvalidRequestError{Missing: []string{ParamStartDate}}
		}
		return models.RenderRequest{}, &InvalidRequestError{Missing: []string{ParamEndDate}}
	}
	if err := validate.Struct(p); err != nil {
		return models.RenderRequest{}, translate(err)
	}

	req := models.RenderRequest{
		Location: models.Location{Latitude: p.Latitude, Longitude: p.Longitude},
		Variable: models.Variable(p.Variable),
	}
	if p.StartDate != "" {
		dr, err := ParseDateRange(p.StartDate, p.EndDate)
		if err != nil {
			return models.RenderRequest{}, err
		}
		req.DateRange = dr
	}
	return req, nil
}

// ParseDateRange parses two calendar dates and enforces start <= end.
func ParseDateRange(start, end string) (*models.DateRange, error) {
	s, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return nil, Invalidf("%s must be a date in YYYY-MM-DD format", ParamStartDate)
	}
	e, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return nil, Invalidf("%s must be a date in YYYY-MM-DD format", ParamEndDate)
	}
	if s.After(e) {
		return nil, Invalidf("%s must not be after %s", ParamStartDate, ParamEndDate)
	}
	return &models.DateRange{Start: s, End: e}, nil
}

// missingParams returns names whose values are absent or whitespace-only.
func missingParams(q url.Values, names ...string) []string {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(q.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func bindLocation(q url.Values) (locationParams, error) {
	lat, err := parseCoordinate(q, ParamLat)
	if err != nil {
		return locationParams{}, err
	}
	lon, err := parseCoordinate(q, ParamLon)
	if err != nil {
		return locationParams{}, err
	}
	return locationParams{Latitude: lat, Longitude: lon}, nil
}

func parseCoordinate(q url.Values, name string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(q.Get(name)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, Invalidf("%s must be a finite number", name)
	}
	return f, nil
}

// translate turns validator output into a single short InvalidRequestError.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Invalidf("invalid parameters")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "gte", "lte":
		switch fe.Field() {
		case ParamLat:
			return Invalidf("%s must be between -90 and 90", ParamLat)
		case ParamLon:
			return Invalidf("%s must be between -180 and 180", ParamLon)
		}
	case "hourly_variable":
		return Invalidf("%s %q is not supported", ParamVariable, fe.Value())
	case "datetime":
		return Invalidf("%s must be a date in YYYY-MM-DD format", fe.Field())
	case "required":
		return &InvalidRequestError{Missing: []string{fe.Field()}}
	}
	return Invalidf("%s is invalid", fe.Field())
}
