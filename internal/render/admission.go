package render

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/observability"
	"github.com/kjstillabower/weather-viz-service/internal/traffic"
)

// Admission bounds concurrent renders of the wrapped Renderer. A request waits up
// to queueTimeout for a slot (zero rejects immediately) and then fails with
// RenderError{Kind: KindOverloaded}.
type Admission struct {
	next         Renderer
	sem          *semaphore.Weighted
	capacity     int64
	inUse        atomic.Int64
	queueTimeout time.Duration
	warn         *rate.Sometimes
}

// NewAdmission wraps next with maxConcurrent slots. maxConcurrent below 1 is treated as 1.
func NewAdmission(next Renderer, maxConcurrent int64, queueTimeout time.Duration) *Admission {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Admission{
		next:         next,
		sem:          semaphore.NewWeighted(maxConcurrent),
		capacity:     maxConcurrent,
		queueTimeout: queueTimeout,
		warn:         &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

func (a *Admission) Render(ctx context.Context, req models.RenderRequest) (Result, error) {
	if err := a.acquire(ctx); err != nil {
		return Result{}, err
	}
	defer a.sem.Release(1)

	a.inUse.Add(1)
	observability.RendersInFlight.Inc()
	defer func() {
		observability.RendersInFlight.Dec()
		a.inUse.Add(-1)
	}()

	return a.next.Render(ctx, req)
}

func (a *Admission) acquire(ctx context.Context) error {
	if a.queueTimeout <= 0 {
		if a.sem.TryAcquire(1) {
			return nil
		}
		return a.reject(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.queueTimeout)
	defer cancel()
	if err := a.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return &RenderError{Kind: KindCanceled, Err: ctx.Err()}
		}
		return a.reject(ctx)
	}
	return nil
}

func (a *Admission) reject(ctx context.Context) error {
	observability.RenderRejectedTotal.Inc()
	traffic.RecordRejected()
	a.warn.Do(func() {
		observability.LoggerFromContext(ctx).Warn("render rejected: all slots busy",
			zap.Int64("capacity", a.capacity),
			zap.Duration("queue_timeout", a.queueTimeout),
		)
	})
	return &RenderError{Kind: KindOverloaded}
}

// Capacity returns the configured number of render slots.
func (a *Admission) Capacity() int64 { return a.capacity }

// InUse returns the number of renders currently holding a slot.
func (a *Admission) InUse() int64 { return a.inUse.Load() }
