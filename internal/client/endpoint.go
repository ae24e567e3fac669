package client

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/validation"
)

// EndpointKind identifies which Open-Meteo API serves a query.
type EndpointKind int

const (
	EndpointForecast EndpointKind = iota
	EndpointArchive
)

func (k EndpointKind) String() string {
	switch k {
	case EndpointForecast:
		return "forecast"
	case EndpointArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Endpoint is a fully built upstream request target.
type Endpoint struct {
	Kind EndpointKind
	URL  string
}

// Query is the selector input. StartDate and EndDate are YYYY-MM-DD and must be set together.
// Current asks the forecast endpoint for the current_weather block; Variable is then optional.
type Query struct {
	Location  models.Location
	Variable  models.Variable
	StartDate string
	EndDate   string
	Current   bool
}

// QueryFor converts a RenderRequest into a selector Query.
func QueryFor(req models.RenderRequest) Query {
	q := Query{Location: req.Location, Variable: req.Variable}
	if req.DateRange != nil {
		q.StartDate = req.DateRange.Start.Format(models.DateLayout)
		q.EndDate = req.DateRange.End.Format(models.DateLayout)
	}
	return q
}

// EndpointSelector chooses forecast vs archive and builds the request URL.
// It holds only immutable base URLs and is safe for concurrent use.
type EndpointSelector struct {
	forecast *url.URL
	archive  *url.URL
}

// NewEndpointSelector parses the two base URLs. Both must be absolute.
func NewEndpointSelector(forecastURL, archiveURL string) (*EndpointSelector, error) {
	f, err := parseBaseURL(forecastURL)
	if err != nil {
		return nil, fmt.Errorf("forecast url: %w", err)
	}
	a, err := parseBaseURL(archiveURL)
	if err != nil {
		return nil, fmt.Errorf("archive url: %w", err)
	}
	return &EndpointSelector{forecast: f, archive: a}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u, nil
}

// Select returns the archive endpoint when both dates are present and the forecast
// endpoint otherwise. Query parameters are encoded in key order, so equal queries
// always produce equal URLs.
func (s *EndpointSelector) Select(q Query) (Endpoint, error) {
	hasStart, hasEnd := q.StartDate != "", q.EndDate != ""
	if hasStart != hasEnd {
		missing := validation.ParamEndDate
		if !hasStart {
			missing = validation.ParamStartDate
		}
		return Endpoint{}, &validation.InvalidRequestError{Missing: []string{missing}}
	}
	if q.Variable == "" && !q.Current {
		return Endpoint{}, &validation.InvalidRequestError{Missing: []string{validation.ParamVariable}}
	}
	if q.Variable != "" && !q.Variable.Supported() {
		return Endpoint{}, validation.Invalidf("%s %q is not supported", validation.ParamVariable, string(q.Variable))
	}

	kind := EndpointForecast
	base := s.forecast
	params := base.Query()
	params.Set("latitude", formatCoordinate(q.Location.Latitude))
	params.Set("longitude", formatCoordinate(q.Location.Longitude))
	params.Set("timezone", "UTC")
	if q.Variable != "" {
		params.Set("hourly", string(q.Variable))
	}

	if hasStart {
		if q.Current {
			return Endpoint{}, validation.Invalidf("current conditions are not available for a date range")
		}
		dr, err := validation.ParseDateRange(q.StartDate, q.EndDate)
		if err != nil {
			return Endpoint{}, err
		}
		kind = EndpointArchive
		base = s.archive
		params = mergeParams(base.Query(), params)
		params.Set("start_date", dr.Start.Format(models.DateLayout))
		params.Set("end_date", dr.End.Format(models.DateLayout))
	}
	if q.Current {
		params.Set("current_weather", "true")
	}

	u := *base
	u.RawQuery = params.Encode()
	return Endpoint{Kind: kind, URL: u.String()}, nil
}

// mergeParams copies src into dst, src winning on key collisions.
func mergeParams(dst, src url.Values) url.Values {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
