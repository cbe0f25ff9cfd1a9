// Package testutil provides polling helpers for tests of asynchronous
// behavior: background jobs, schedulers and their side effects.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// DefaultTimeout bounds every wait that does not name its own timeout.
const DefaultTimeout = 10 * time.Second

// Poll checks condition every interval until it holds, ctx is done, or
// timeout expires.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	_, err := WaitForState(ctx, condition, func(ok bool) bool { return ok }, timeout, interval)
	return err
}

// WaitForState polls getter until predicate accepts its value, and returns
// that value.
//
// Example usage:
//
//	status, err := WaitForState(ctx, s.Status,
//		func(s bt.Status) bool { return s.IsTerminal() },
//		time.Second,
//		time.Millisecond)
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		state := getter()
		if predicate(state) {
			return state, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
			var zero T
			return zero, fmt.Errorf("timeout waiting for target state (type %T, threshold: %v)", state, timeout)
		case <-ticker.C:
		}
	}
}

// WaitDone fails the test unless done is closed within DefaultTimeout.
func WaitDone(t testing.TB, done <-chan struct{}, what string) {
	t.Helper()
	timer := time.NewTimer(DefaultTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		t.Fatalf("timeout waiting for %s", what)
	}
}
