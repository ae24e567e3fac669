package client

import (
	"errors"
	"fmt"
)

// ErrUpstreamFailure matches every *UpstreamError via errors.Is.
var ErrUpstreamFailure = errors.New("upstream failure")

// UpstreamErrorKind classifies why an upstream fetch failed.
type UpstreamErrorKind string

const (
	UpstreamStatus        UpstreamErrorKind = "status"
	UpstreamTransport     UpstreamErrorKind = "transport"
	UpstreamMalformedBody UpstreamErrorKind = "malformed_body"
	UpstreamCircuitOpen   UpstreamErrorKind = "circuit_open"
)

// UpstreamError is returned by Fetch for every failure. Status is set only for UpstreamStatus.
type UpstreamError struct {
	Kind     UpstreamErrorKind
	Endpoint EndpointKind
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case UpstreamStatus:
		return fmt.Sprintf("upstream %s returned HTTP %d", e.Endpoint, e.Status)
	case UpstreamCircuitOpen:
		return fmt.Sprintf("upstream %s unavailable: circuit open", e.Endpoint)
	default:
		if e.Err != nil {
			return fmt.Sprintf("upstream %s %s: %v", e.Endpoint, e.Kind, e.Err)
		}
		return fmt.Sprintf("upstream %s %s", e.Endpoint, e.Kind)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamFailure
}
