// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// MemoryStore is the process-lifetime Store implementation.
//
// # Description
//
// Sessions live in a map guarded by a RWMutex. Expiry is lazy: Get and IDs
// drop sessions past their TTL as they encounter them, and the dialogue
// sweeper handles the rest. Used for tests and as the degradation target
// when the durable store fails.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*datatypes.DialogueSession
	ttl      time.Duration
}

// NewMemoryStore creates an empty in-memory store. A ttl of 0 selects
// DefaultSessionTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*datatypes.DialogueSession),
		ttl:      ttl,
	}
}

// Put implements the Store interface.
func (s *MemoryStore) Put(ctx context.Context, session *datatypes.DialogueSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Get implements the Store interface.
func (s *MemoryStore) Get(ctx context.Context, id string) (*datatypes.DialogueSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if expired(session, s.ttl, time.Now().UTC()) {
		s.mu.Lock()
		// Recheck under the write lock; a Put may have refreshed it.
		if cur, ok := s.sessions[id]; ok && expired(cur, s.ttl, time.Now().UTC()) {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Delete implements the Store interface.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// IDs implements the Store interface.
func (s *MemoryStore) IDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close implements the Store interface.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*datatypes.DialogueSession)
	return nil
}

// Len returns the number of live sessions, for tests and metrics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
