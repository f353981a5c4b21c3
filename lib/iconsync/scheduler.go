// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package iconsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/ldbfs/lib/clock"
)

// DefaultInterval is the time between passes.
const DefaultInterval = 30 * time.Minute

// Runner is one unit of periodic work. *Job implements it.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs a Runner every interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// NewScheduler returns a Scheduler. A non-positive interval uses
// DefaultInterval, a nil clock the real one, a nil logger discards.
func NewScheduler(runner Runner, interval time.Duration, c clock.Clock, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{runner: runner, interval: interval, clock: c, logger: logger}
}

// Run blocks until ctx is cancelled, running a pass each time the
// interval elapses. The first pass happens one interval after Run
// starts. A pass that fails is logged and the schedule continues.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("icon sync scheduled", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result, err := s.runner.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("icon sync pass failed", "error", err)
			continue
		}
		s.logger.Info("icon sync pass finished",
			"checked", result.Checked,
			"updated", result.Updated,
			"unchanged", result.Unchanged,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
}
