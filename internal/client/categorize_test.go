package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory
// for metrics labeling, including typed upstream errors and wrapped context errors.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryCanceled},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"status 404", &UpstreamError{Kind: UpstreamStatus, Status: 404}, ErrorCategoryUpstream4xx},
		{"status 503", &UpstreamError{Kind: UpstreamStatus, Status: 503}, ErrorCategoryUpstream5xx},
		{"malformed", &UpstreamError{Kind: UpstreamMalformedBody}, ErrorCategoryParsing},
		{"circuit open", &UpstreamError{Kind: UpstreamCircuitOpen}, ErrorCategoryCircuitOpen},
		{"transport timeout", &UpstreamError{Kind: UpstreamTransport, Err: context.DeadlineExceeded}, ErrorCategoryTimeout},
		{"transport refused", &UpstreamError{Kind: UpstreamTransport, Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, ErrorCategoryNetwork},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
