package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/observability"
)

// RawResponse is an upstream JSON object with its top-level keys left undecoded.
type RawResponse map[string]json.RawMessage

// Fetcher performs one GET against an upstream endpoint and returns the decoded body.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint Endpoint) (RawResponse, error)
}

// OpenMeteoClient fetches Open-Meteo endpoints. It does not retry; a configured
// circuit breaker short-circuits calls after repeated transport or 5xx failures.
type OpenMeteoClient struct {
	http    *resty.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewOpenMeteoClient returns a client whose every call is bounded by timeout.
func NewOpenMeteoClient(timeout time.Duration, logger *zap.Logger) *OpenMeteoClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "weather-viz-service").
		SetLogger(logger.Named("resty").Sugar())
	return &OpenMeteoClient{http: rc, timeout: timeout}
}

// SetCircuitBreaker installs cb around every upstream call. A nil cb disables it.
func (c *OpenMeteoClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// BreakerState reports the breaker state and whether a breaker is configured.
func (c *OpenMeteoClient) BreakerState() (gobreaker.State, bool) {
	if c.breaker == nil {
		return gobreaker.StateClosed, false
	}
	return c.breaker.State(), true
}

// Fetch issues a GET to endpoint.URL. Transport failures, non-2xx statuses, and
// bodies that are not a JSON object all return *UpstreamError.
func (c *OpenMeteoClient) Fetch(ctx context.Context, endpoint Endpoint) (RawResponse, error) {
	start := time.Now()
	label := endpoint.Kind.String()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.execute(reqCtx, endpoint)
	duration := time.Since(start).Seconds()
	if err != nil {
		status := "error"
		var upErr *UpstreamError
		if errors.As(err, &upErr) && upErr.Kind == UpstreamStatus {
			status = statusLabel(upErr.Status)
		}
		observability.UpstreamCallsTotal.WithLabelValues(label, status).Inc()
		observability.UpstreamDuration.WithLabelValues(label, status).Observe(duration)
		observability.UpstreamErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return nil, err
	}

	status := statusLabel(resp.StatusCode())
	observability.UpstreamCallsTotal.WithLabelValues(label, status).Inc()
	observability.UpstreamDuration.WithLabelValues(label, status).Observe(duration)

	if !resp.IsSuccess() {
		err := &UpstreamError{Kind: UpstreamStatus, Endpoint: endpoint.Kind, Status: resp.StatusCode()}
		observability.UpstreamErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return nil, err
	}

	var raw RawResponse
	if err := json.Unmarshal(resp.Body(), &raw); err != nil || raw == nil {
		if err == nil {
			err = errors.New("response body is not a JSON object")
		}
		upErr := &UpstreamError{Kind: UpstreamMalformedBody, Endpoint: endpoint.Kind, Err: err}
		observability.UpstreamErrorsTotal.WithLabelValues(string(CategorizeError(upErr))).Inc()
		return nil, upErr
	}
	return raw, nil
}

// execute runs the request, through the breaker when one is set. Only transport
// errors and 5xx responses count as breaker failures; 4xx are returned as a
// successful response and classified by the caller.
func (c *OpenMeteoClient) execute(ctx context.Context, endpoint Endpoint) (*resty.Response, error) {
	call := func() (*resty.Response, error) {
		req := c.http.R().SetContext(ctx)
		if id := observability.CorrelationID(ctx); id != "" {
			req.SetHeader("X-Correlation-ID", id)
		}
		resp, err := req.Get(endpoint.URL)
		if err != nil {
			return nil, &UpstreamError{Kind: UpstreamTransport, Endpoint: endpoint.Kind, Err: err}
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, &UpstreamError{Kind: UpstreamStatus, Endpoint: endpoint.Kind, Status: resp.StatusCode()}
		}
		return resp, nil
	}

	if c.breaker == nil {
		return call()
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &UpstreamError{Kind: UpstreamCircuitOpen, Endpoint: endpoint.Kind, Err: err}
		}
		return nil, err
	}
	return out.(*resty.Response), nil
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return strconv.Itoa(statusCode)
	}
}
