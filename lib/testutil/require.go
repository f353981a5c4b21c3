// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed.
//
//	testutil.RequireReceive(t, runner.ran, 5*time.Second, "first pass")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed without a value", describe(msgAndArgs))
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("%s: nothing received after %v", describe(msgAndArgs), timeout)
	}
	panic("unreachable")
}

// RequireNoReceive fails the test if ch yields a value within wait.
// Use a short wait: it always elapses in a passing test.
func RequireNoReceive[T any](t TB, ch <-chan T, wait time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("%s: unexpected value %v", describe(msgAndArgs), v)
	case <-time.After(wait):
	}
}

// RequireClosed waits for ch to be closed or to yield a value.
//
//	testutil.RequireClosed(t, done, 5*time.Second, "scheduler exit")
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("%s: channel still open after %v", describe(msgAndArgs), timeout)
	}
}

// describe renders the optional message: a plain value, or a format
// string followed by its arguments.
func describe(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 0:
		return "wait"
	case len(msgAndArgs) == 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
