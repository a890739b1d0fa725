// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains request and response types for the HTTP surface,
// including the inbound messaging-platform event.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Input Limits
// =============================================================================

const (
	// MaxUtteranceBytes is the maximum size of a single user utterance.
	// Checked as bytes, not runes, to bound memory for hostile payloads.
	MaxUtteranceBytes = 16 * 1024 // 16KB

	// MaxUserIDLen bounds user and channel identifiers.
	MaxUserIDLen = 128
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// coachValidate is the validator instance for coach datatypes.
// Initialized in init() with custom validators.
var coachValidate *validator.Validate

func init() {
	coachValidate = validator.New()
	_ = coachValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks that a string field does not exceed
// MaxUtteranceBytes. Byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxUtteranceBytes
}

// =============================================================================
// Session Endpoints
// =============================================================================

// StartSessionRequest is the body for POST /v1/sessions.
//
// # Description
//
// InitialContext is what the rep wants coaching on ("new customer
// acquisition", "closing enterprise deals"). It must be non-empty; the
// orchestrator rejects whitespace-only context as well.
type StartSessionRequest struct {
	UserID         string `json:"user_id" validate:"required,max=128"`
	ChannelID      string `json:"channel_id" validate:"max=128"`
	InitialContext string `json:"context" validate:"required,maxbytes"`
}

// Validate validates the StartSessionRequest fields.
func (r *StartSessionRequest) Validate() error {
	return coachValidate.Struct(r)
}

// StartSessionResponse is the reply to a successful session start.
type StartSessionResponse struct {
	SessionID string   `json:"session_id"`
	Stage     Stage    `json:"stage"`
	Score     int      `json:"completeness_score"`
	Questions []string `json:"questions"`
}

// ProcessTurnRequest is the body for POST /v1/sessions/:sessionId/turns.
type ProcessTurnRequest struct {
	Text string `json:"text" validate:"required,maxbytes"`
}

// Validate validates the ProcessTurnRequest fields.
func (r *ProcessTurnRequest) Validate() error {
	return coachValidate.Struct(r)
}

// Turn response types. A turn resolves to exactly one of these.
const (
	TurnTypeFollowUp   = "follow_up"
	TurnTypeActionPlan = "action_plan"
)

// TurnResponse is the reply to a processed turn.
//
// # Description
//
// Type is follow_up when the coach needs more context (Questions populated,
// 1-5 entries) and action_plan when the session crossed the planning
// threshold (Plan populated, session completed). StageNote carries the
// human-readable stage description shown alongside follow-up questions.
type TurnResponse struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Stage     Stage       `json:"stage"`
	Score     int         `json:"completeness_score"`
	Questions []string    `json:"questions,omitempty"`
	StageNote string      `json:"stage_note,omitempty"`
	Plan      *ActionPlan `json:"action_plan,omitempty"`
}

// =============================================================================
// Inbound Messaging Events
// =============================================================================

// InboundEvent is a message event delivered from the messaging platform,
// POST /v1/events.
//
// # Description
//
// Events are deduplicated on (EventTS, UserID, ChannelID) within a five
// minute window: a duplicate delivery is acknowledged but produces no new
// session mutation. Events carrying the service's own bot identity are
// dropped before any session work.
type InboundEvent struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	ChannelID string `json:"channel_id" validate:"required,max=128"`
	Text      string `json:"text" validate:"required,maxbytes"`
	EventTS   string `json:"event_timestamp" validate:"required"`
	BotID     string `json:"bot_id,omitempty"`
	Subtype   string `json:"subtype,omitempty"`
}

// Validate validates the InboundEvent fields.
func (e *InboundEvent) Validate() error {
	return coachValidate.Struct(e)
}

// DedupKey returns the identity used for duplicate suppression.
func (e *InboundEvent) DedupKey() string {
	return fmt.Sprintf("%s_%s_%s", e.EventTS, e.UserID, e.ChannelID)
}

// FromSelf reports whether the event was produced by the service itself,
// either directly (matching bot user ID) or via a bot-message subtype.
func (e *InboundEvent) FromSelf(botUserID string) bool {
	if e.BotID != "" || e.Subtype == "bot_message" {
		return true
	}
	return botUserID != "" && e.UserID == botUserID
}

// =============================================================================
// Knowledge Endpoint
// =============================================================================

// KnowledgeSearchResponse is the reply for GET /v1/knowledge/search.
type KnowledgeSearchResponse struct {
	Query   string          `json:"query"`
	Results []ReferenceItem `json:"results"`
}

// ReferenceItem is one knowledge base hit.
type ReferenceItem struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score,omitempty"`
}
