package client

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-viz-service/internal/observability"
)

// BreakerComponent is the metric label for the upstream circuit breaker.
const BreakerComponent = "open_meteo"

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a half-open probe.
	OpenTimeout time.Duration
	// HalfOpenMaxRequests is how many probes may pass while half-open.
	HalfOpenMaxRequests uint32
}

// NewCircuitBreaker builds a breaker that trips after FailureThreshold consecutive
// failures and reports every state change to metrics and the log.
func NewCircuitBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	probes := cfg.HalfOpenMaxRequests
	if probes == 0 {
		probes = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        BreakerComponent,
		MaxRequests: probes,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String())
			logger.Warn("circuit breaker state change",
				zap.String("component", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isBreakerSuccess,
	})
}

// isBreakerSuccess counts caller cancellation as a success so abandoned requests never trip the breaker.
func isBreakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
