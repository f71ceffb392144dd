// Package lazy holds engines that are expensive to start and shared by
// every scan. Initialization runs at most once at a time; concurrent
// callers wait for the in-flight attempt instead of starting their own.
package lazy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// InitFunc builds the shared value.
type InitFunc[T any] func(ctx context.Context) (T, error)

// Value is a lazily initialized, retrying singleton.
type Value[T any] struct {
	name     string
	init     InitFunc[T]
	attempts int
	backoff  time.Duration

	mu    sync.RWMutex
	val   T
	ready bool
	group singleflight.Group
}

// New returns a Value that will call init up to attempts times, sleeping
// backoff between failures. A failed round is retried on the next Get.
func New[T any](name string, init InitFunc[T], attempts int, backoff time.Duration) *Value[T] {
	if attempts < 1 {
		attempts = 1
	}
	return &Value[T]{name: name, init: init, attempts: attempts, backoff: backoff}
}

// Get returns the shared value, initializing it if needed.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	if val, ok := v.Peek(); ok {
		return val, nil
	}

	// The init is shared, so one caller's cancellation must not abort it.
	initCtx := context.WithoutCancel(ctx)
	ch := v.group.DoChan(v.name, func() (any, error) {
		return v.initialize(initCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Peek returns the value only if it is already initialized.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val, v.ready
}

// Reset drops the current value so the next Get initializes again.
// It returns the dropped value, if there was one, so callers can release it.
func (v *Value[T]) Reset() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	old, ok := v.val, v.ready
	var zero T
	v.val, v.ready = zero, false
	return old, ok
}

func (v *Value[T]) initialize(ctx context.Context) (T, error) {
	if val, ok := v.Peek(); ok {
		return val, nil
	}

	var lastErr error
	for attempt := 1; attempt <= v.attempts; attempt++ {
		start := time.Now()
		val, err := v.init(ctx)
		if err == nil {
			v.mu.Lock()
			v.val, v.ready = val, true
			v.mu.Unlock()
			slog.Debug("Engine initialized", "engine", v.name, "attempt", attempt, "duration_ms", time.Since(start).Milliseconds())
			return val, nil
		}
		lastErr = err
		slog.Warn("Engine initialization failed", "engine", v.name, "attempt", attempt, "error", err)
		if attempt < v.attempts {
			time.Sleep(v.backoff)
		}
	}

	var zero T
	return zero, fmt.Errorf("failed to initialize %s after %d attempts: %w", v.name, v.attempts, lastErr)
}
