// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store provides session persistence for the coach service.
//
// Two implementations exist: a durable BadgerDB store and an in-memory store.
// The Failover wrapper degrades from the former to the latter when the disk
// store becomes unusable, so a storage outage costs durability but never
// takes the dialogue engine down.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrSessionNotFound is returned when a session ID is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnavailable indicates the backing store cannot serve requests.
	// The Failover wrapper reacts to this by degrading to memory.
	ErrUnavailable = errors.New("session store unavailable")
)

// DefaultSessionTTL is how long a session survives after its last activity.
const DefaultSessionTTL = 24 * time.Hour

// =============================================================================
// Store Interface
// =============================================================================

// Store persists dialogue sessions.
//
// # Description
//
// Get returns ErrSessionNotFound for unknown and expired IDs; expiry is
// measured from the session's last activity against the store's TTL.
// Implementations must return deep copies so callers can mutate results
// freely, and must be safe for concurrent use.
type Store interface {
	// Put saves the session, replacing any existing state for its ID.
	Put(ctx context.Context, session *datatypes.DialogueSession) error

	// Get loads a session by ID.
	Get(ctx context.Context, id string) (*datatypes.DialogueSession, error)

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// IDs lists the IDs of all live sessions, for the expiry sweeper.
	IDs(ctx context.Context) ([]string, error)

	// Close releases store resources.
	Close() error
}

// expired reports whether a session is past its TTL at now.
func expired(s *datatypes.DialogueSession, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(s.LastActivityAt) > ttl
}
