package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/weather-viz-service/internal/models"
	"github.com/kjstillabower/weather-viz-service/internal/traffic"
)

// blockingRenderer signals started and holds its slot until release is closed.
type blockingRenderer struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingRenderer() *blockingRenderer {
	return &blockingRenderer{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingRenderer) Render(ctx context.Context, _ models.RenderRequest) (Result, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return Result{ContentType: "image/png", Body: []byte("png")}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func TestAdmission_RejectsWhenFull(t *testing.T) {
	traffic.Reset()
	inner := newBlockingRenderer()
	a := NewAdmission(inner, 1, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := a.Render(context.Background(), berlinRequest)
		assert.NoError(t, err)
	}()
	<-inner.started
	assert.Equal(t, int64(1), a.InUse())

	_, err := a.Render(context.Background(), berlinRequest)
	var rerr *RenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, KindOverloaded, rerr.Kind)
	assert.Equal(t, 1, traffic.RejectedCount(time.Minute))

	close(inner.release)
	wg.Wait()
	assert.Equal(t, int64(0), a.InUse())

	res, err := a.Render(context.Background(), berlinRequest)
	require.NoError(t, err)
	assert.Equal(t, "png", string(res.Body))
}

func TestAdmission_QueueTimeout(t *testing.T) {
	inner := newBlockingRenderer()
	a := NewAdmission(inner, 1, 50*time.Millisecond)

	go func() { _, _ = a.Render(context.Background(), berlinRequest) }()
	<-inner.started

	start := time.Now()
	_, err := a.Render(context.Background(), berlinRequest)
	var rerr *RenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, KindOverloaded, rerr.Kind)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	close(inner.release)
}

func TestAdmission_QueuedRequestGetsSlot(t *testing.T) {
	inner := newBlockingRenderer()
	a := NewAdmission(inner, 1, 5*time.Second)

	go func() { _, _ = a.Render(context.Background(), berlinRequest) }()
	<-inner.started

	done := make(chan error, 1)
	go func() {
		_, err := a.Render(context.Background(), berlinRequest)
		done <- err
	}()
	close(inner.release)
	require.NoError(t, <-done)
}

func TestAdmission_CanceledWhileQueued(t *testing.T) {
	inner := newBlockingRenderer()
	a := NewAdmission(inner, 1, 5*time.Second)

	go func() { _, _ = a.Render(context.Background(), berlinRequest) }()
	<-inner.started

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := a.Render(ctx, berlinRequest)
	var rerr *RenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, KindCanceled, rerr.Kind)

	close(inner.release)
}

func TestNewAdmission_MinimumCapacity(t *testing.T) {
	a := NewAdmission(newBlockingRenderer(), 0, 0)
	assert.Equal(t, int64(1), a.Capacity())
}
