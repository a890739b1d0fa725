// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/observability"
	"github.com/CoachPilotAI/CoachPilot/services/coach/store"
)

// SweeperConfig holds configuration for the session expiry sweeper.
type SweeperConfig struct {
	// Interval is how often a sweep cycle runs. Default: 10 minutes.
	Interval time.Duration
}

// DefaultSweeperConfig returns production defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Interval: 10 * time.Minute}
}

// SweepResult summarizes one sweep cycle.
type SweepResult struct {
	Scanned int
	Evicted int
	Active  int
}

// Sweeper evicts expired sessions in the background.
//
// # Description
//
// Periodically walks the session store and deletes sessions whose TTL has
// lapsed. Each eviction runs under the same per-session lock the
// orchestrator uses, so a sweep never races an in-flight turn. Uses the
// ticker + done channel pattern for graceful shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Sweeper struct {
	store   store.Store
	locks   *lockTable
	config  SweeperConfig
	logger  *slog.Logger
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper bound to the orchestrator's lock table.
func NewSweeper(o *Orchestrator, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if config.Interval <= 0 {
		config = DefaultSweeperConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:  o.store,
		locks:  o.locks,
		config: config,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins the background sweep loop. Returns an error if the sweeper
// is already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("session expiry sweeper starting",
		"interval", s.config.Interval.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.logger.Info("session expiry sweeper stopping")
	close(s.done)
	s.running = false
}

// RunNow performs one sweep cycle immediately.
func (s *Sweeper) RunNow(ctx context.Context) (*SweepResult, error) {
	ids, err := s.store.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for sweep: %w", err)
	}

	result := &SweepResult{Scanned: len(ids)}
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		release := s.locks.Acquire(id)
		session, err := s.store.Get(ctx, id)
		switch {
		case err == nil:
			if !session.Terminal() {
				result.Active++
			}
		default:
			// Expired sessions surface as not-found. Delete reclaims
			// whatever the store still holds for the key.
			if delErr := s.store.Delete(ctx, id); delErr != nil {
				s.logger.Warn("evicting expired session failed",
					"session_id", id,
					"error", delErr,
				)
			} else {
				result.Evicted++
				observability.RecordSession("expired")
			}
		}
		release()
	}

	observability.SetActiveSessions(float64(result.Active))
	if result.Evicted > 0 {
		s.logger.Info("sweep cycle complete",
			"scanned", result.Scanned,
			"evicted", result.Evicted,
			"active", result.Active,
		)
	}
	return result, nil
}

// runLoop is the sweeper goroutine.
func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunNow(ctx); err != nil {
				s.logger.Warn("sweep cycle failed", "error", err)
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
