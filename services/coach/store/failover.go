// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// Failover wraps a durable Store and degrades to an in-memory fallback when
// the durable store reports ErrUnavailable.
//
// # Description
//
// The switch is one-way for the process lifetime: once the primary fails, all
// traffic goes to the fallback and a warning is logged. Sessions created
// before the failure are lost along with the primary; the coaching flow
// simply starts fresh sessions, which the dialogue layer treats as
// ErrSessionNotFound on the next turn.
//
// # Thread Safety
//
// Safe for concurrent use.
type Failover struct {
	primary  Store
	fallback Store
	degraded atomic.Bool
	logger   *slog.Logger
}

// NewFailover wraps primary with the in-memory fallback.
func NewFailover(primary Store, fallback Store, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover{primary: primary, fallback: fallback, logger: logger}
}

// active returns the store currently serving traffic.
func (f *Failover) active() Store {
	if f.degraded.Load() {
		return f.fallback
	}
	return f.primary
}

// degrade flips to the fallback, logging once.
func (f *Failover) degrade(op string, err error) {
	if f.degraded.CompareAndSwap(false, true) {
		f.logger.Warn("durable session store unavailable, degrading to in-memory store",
			"operation", op,
			"error", err,
		)
	}
}

// Degraded reports whether the fallback is serving traffic.
func (f *Failover) Degraded() bool {
	return f.degraded.Load()
}

// Put implements the Store interface.
func (f *Failover) Put(ctx context.Context, session *datatypes.DialogueSession) error {
	err := f.active().Put(ctx, session)
	if errors.Is(err, ErrUnavailable) && !f.degraded.Load() {
		f.degrade("put", err)
		return f.fallback.Put(ctx, session)
	}
	return err
}

// Get implements the Store interface.
func (f *Failover) Get(ctx context.Context, id string) (*datatypes.DialogueSession, error) {
	session, err := f.active().Get(ctx, id)
	if errors.Is(err, ErrUnavailable) && !f.degraded.Load() {
		f.degrade("get", err)
		return f.fallback.Get(ctx, id)
	}
	return session, err
}

// Delete implements the Store interface.
func (f *Failover) Delete(ctx context.Context, id string) error {
	err := f.active().Delete(ctx, id)
	if errors.Is(err, ErrUnavailable) && !f.degraded.Load() {
		f.degrade("delete", err)
		return f.fallback.Delete(ctx, id)
	}
	return err
}

// IDs implements the Store interface.
func (f *Failover) IDs(ctx context.Context) ([]string, error) {
	ids, err := f.active().IDs(ctx)
	if errors.Is(err, ErrUnavailable) && !f.degraded.Load() {
		f.degrade("ids", err)
		return f.fallback.IDs(ctx)
	}
	return ids, err
}

// Close implements the Store interface. Both stores are closed; the first
// error wins.
func (f *Failover) Close() error {
	err := f.primary.Close()
	if ferr := f.fallback.Close(); err == nil {
		err = ferr
	}
	return err
}
