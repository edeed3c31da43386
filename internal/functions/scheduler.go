// scheduler.go
//
// memebase, a meme management platform backend
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of memebase.
// memebase is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// memebase is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with memebase.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package functions holds the background work of the platform: the
// trending scheduler and the document event consumers.
package functions

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/metrics"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/types"
	"github.com/rs/zerolog"
)

// TrendingCalculator computes trending scores
type TrendingCalculator interface {
	Calculate(ctx context.Context) (*services.TrendingSummary, error)
}

// TrendingScheduler runs the trending calculation on an interval. Only one
// calculation runs at a time, whether scheduled or triggered.
type TrendingScheduler struct {
	calculator  TrendingCalculator
	interval    time.Duration
	runOnStart  bool
	maxDuration time.Duration
	running     atomic.Bool
	logger      zerolog.Logger
}

// NewTrendingScheduler creates a scheduler. A non-positive interval means
// one hour.
func NewTrendingScheduler(calculator TrendingCalculator, interval time.Duration, runOnStart bool) *TrendingScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TrendingScheduler{
		calculator:  calculator,
		interval:    interval,
		runOnStart:  runOnStart,
		maxDuration: 30 * time.Minute,
		logger:      logging.WithComponent("trending"),
	}
}

// Run calculates on every tick until ctx is done
func (s *TrendingScheduler) Run(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Bool("run_on_start", s.runOnStart).Msg("Trending scheduler starting")

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Trending scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *TrendingScheduler) tick(ctx context.Context) {
	if _, err := s.Trigger(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled trending calculation failed")
	}
}

// Trigger runs one calculation now. It fails with 409 while another
// calculation is in progress.
func (s *TrendingScheduler) Trigger(ctx context.Context) (*services.TrendingSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, types.NewAppError(http.StatusConflict, "A trending calculation is already running", "functions.trending.running")
	}
	defer s.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.maxDuration)
	defer cancel()

	started := time.Now()
	summary, err := s.calculator.Calculate(runCtx)
	var processed, failed int
	if summary != nil {
		processed, failed = summary.Processed, summary.Failed
	}
	metrics.RecordTrendingRun(time.Since(started), processed, failed, err)
	return summary, err
}

// Running reports whether a calculation is in progress
func (s *TrendingScheduler) Running() bool {
	return s.running.Load()
}
