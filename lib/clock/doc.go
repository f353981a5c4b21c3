// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source for ldbfs components.
//
// Library code never calls time.Now, time.After, time.NewTicker or
// time.Sleep directly. It holds a Clock instead: binaries pass Real(),
// tests pass Fake() and move time forward explicitly with Advance.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go scheduler.Run(ctx)
//	c.WaitForTimers(1)      // scheduler has armed its ticker
//	c.Advance(30 * time.Minute)
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
