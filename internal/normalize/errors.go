package normalize

import (
	"errors"
	"fmt"

	"github.com/kjstillabower/weather-viz-service/internal/observability"
)

// ErrInvalidUpstreamResponse matches every *NormalizationError via errors.Is.
var ErrInvalidUpstreamResponse = errors.New("invalid upstream response")

// ErrorKind classifies a normalization failure.
type ErrorKind string

const (
	KindMissingField   ErrorKind = "missing_field"
	KindLengthMismatch ErrorKind = "length_mismatch"
	KindInvalidField   ErrorKind = "invalid_field"
	KindUnordered      ErrorKind = "unordered"
)

// NormalizationError reports a provider payload that does not fit the expected shape.
// Field is the dotted path of the offending field, e.g. "hourly.time".
type NormalizationError struct {
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *NormalizationError) Error() string {
	switch e.Kind {
	case KindMissingField:
		return fmt.Sprintf("upstream response missing %s", e.Field)
	case KindLengthMismatch:
		return fmt.Sprintf("upstream response %s length does not match hourly.time", e.Field)
	case KindUnordered:
		return fmt.Sprintf("upstream response %s is not strictly ascending", e.Field)
	default:
		if e.Err != nil {
			return fmt.Sprintf("upstream response %s is invalid: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("upstream response %s is invalid", e.Field)
	}
}

func (e *NormalizationError) Unwrap() error { return e.Err }

func (e *NormalizationError) Is(target error) bool {
	return target == ErrInvalidUpstreamResponse
}

func fail(kind ErrorKind, field string, err error) *NormalizationError {
	observability.NormalizationErrorsTotal.WithLabelValues(string(kind)).Inc()
	return &NormalizationError{Kind: kind, Field: field, Err: err}
}
