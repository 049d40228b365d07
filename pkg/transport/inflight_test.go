package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestInFlightRegistryRegisterAndCancel(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	r.Register("req-abc123", func() { cancelled = true })

	ok := r.Cancel("req-abc123")
	if !ok {
		t.Error("Cancel should return true for registered ID")
	}
	if !cancelled {
		t.Error("cancel function should have been called")
	}

	// Second cancel should return false (already removed).
	ok = r.Cancel("req-abc123")
	if ok {
		t.Error("Cancel should return false after already cancelled")
	}
}

func TestInFlightRegistryCancelUnknown(t *testing.T) {
	r := NewInFlightRegistry()

	ok := r.Cancel("req-nonexistent")
	if ok {
		t.Error("Cancel should return false for unknown ID")
	}
}

func TestInFlightRegistryRemove(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	r.Register("req-abc123", func() { cancelled = true })

	r.Remove("req-abc123")

	ok := r.Cancel("req-abc123")
	if ok {
		t.Error("Cancel should return false after Remove")
	}
	if cancelled {
		t.Error("cancel function should not have been called by Remove")
	}
}

func TestInFlightRegistryRemoveUnknown(t *testing.T) {
	r := NewInFlightRegistry()
	// Should not panic.
	r.Remove("req-nonexistent")
}

func TestInFlightRegistryConcurrentAccess(t *testing.T) {
	r := NewInFlightRegistry()
	var cancelCount atomic.Int64
	const numEntries = 100

	// Register entries concurrently.
	var wg sync.WaitGroup
	for i := 0; i < numEntries; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Register(id, func() { cancelCount.Add(1) })
		}(idForIndex(i))
	}
	wg.Wait()

	// Cancel half concurrently.
	for i := 0; i < numEntries/2; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Cancel(id)
		}(idForIndex(i))
	}
	wg.Wait()

	if cancelCount.Load() != numEntries/2 {
		t.Errorf("expected %d cancellations, got %d", numEntries/2, cancelCount.Load())
	}

	// Remove the other half concurrently.
	for i := numEntries / 2; i < numEntries; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Remove(id)
		}(idForIndex(i))
	}
	wg.Wait()
}

func idForIndex(i int) string {
	return "req-" + string(rune('A'+i%26)) + string(rune('0'+i/26))
}

func TestInFlightRegistryTrack(t *testing.T) {
	r := NewInFlightRegistry()

	ctx, release := r.Track(context.Background(), "req-track")
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	release()
	if r.Len() != 0 {
		t.Errorf("Len() after release = %d, want 0", r.Len())
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("ctx.Err() after release = %v, want context.Canceled", ctx.Err())
	}
}

func TestInFlightRegistryCancelAll(t *testing.T) {
	r := NewInFlightRegistry()

	ctxA, releaseA := r.Track(context.Background(), "req-a")
	defer releaseA()
	ctxB, releaseB := r.Track(context.Background(), "req-b")
	defer releaseB()

	if n := r.CancelAll(); n != 2 {
		t.Errorf("CancelAll() = %d, want 2", n)
	}
	for name, ctx := range map[string]context.Context{"a": ctxA, "b": ctxB} {
		select {
		case <-ctx.Done():
		default:
			t.Errorf("context %s not cancelled", name)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() after CancelAll = %d, want 0", r.Len())
	}
	if n := r.CancelAll(); n != 0 {
		t.Errorf("second CancelAll() = %d, want 0", n)
	}
}
