package client

import (
	"context"
	"errors"
	"net"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryCanceled    ErrorCategory = "canceled"
	ErrorCategoryNetwork     ErrorCategory = "network"
	ErrorCategoryUpstream4xx ErrorCategory = "upstream_4xx"
	ErrorCategoryUpstream5xx ErrorCategory = "upstream_5xx"
	ErrorCategoryParsing     ErrorCategory = "parsing"
	ErrorCategoryCircuitOpen ErrorCategory = "circuit_open"
	ErrorCategoryUnknown     ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		switch upErr.Kind {
		case UpstreamStatus:
			if upErr.Status >= 500 {
				return ErrorCategoryUpstream5xx
			}
			return ErrorCategoryUpstream4xx
		case UpstreamMalformedBody:
			return ErrorCategoryParsing
		case UpstreamCircuitOpen:
			return ErrorCategoryCircuitOpen
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCategoryCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorCategoryNetwork
	}

	return ErrorCategoryUnknown
}
