package http

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInFlightTracker_CountAndWait(t *testing.T) {
	tracker := &InFlightTracker{}

	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment()
		}()
	}
	wg.Wait()
	if got := tracker.Count(); got != 50 {
		t.Errorf("Count() = %d, want 50", got)
	}

	for i := 0; i < 50; i++ {
		tracker.Decrement()
	}
	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestInFlightTracker_WaitForZero(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- tracker.WaitForZero(ctx, 5*time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	tracker.Decrement()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForZero() = %v, want nil", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitForZero did not return after count reached zero")
	}
}

func TestInFlightTracker_WaitForZero_ContextCanceled(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); err == nil {
		t.Error("WaitForZero expected context error, got nil")
	}
}
