// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides the shared data structures for the coach service.
//
// This file contains the dialogue session model: the session itself, its
// message history, the dialogue stages, and the completeness assessment.
// Request and response wire types live in requests.go, action plan types in
// plan.go.
package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Dialogue Stages
// =============================================================================

// Stage identifies where a dialogue session sits in its lifecycle.
//
// # Description
//
// Sessions move initial -> gathering <-> clarifying -> planning -> completed.
// The planning -> completed transition is one-way. Archived is orthogonal:
// it is reachable from any non-terminal stage when the user ends the session
// explicitly, and like completed it is terminal.
type Stage string

const (
	StageInitial    Stage = "initial"
	StageGathering  Stage = "gathering"
	StageClarifying Stage = "clarifying"
	StagePlanning   Stage = "planning"
	StageCompleted  Stage = "completed"
	StageArchived   Stage = "archived"
)

// Terminal reports whether no further turns are accepted in this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageArchived
}

// Description returns the short operator-facing label surfaced in follow-up
// payloads.
func (s Stage) Description() string {
	switch s {
	case StageInitial:
		return "getting started"
	case StageGathering:
		return "understanding your situation"
	case StageClarifying:
		return "filling in one last gap"
	case StagePlanning:
		return "preparing your action plan"
	case StageCompleted:
		return "action plan delivered"
	case StageArchived:
		return "session closed"
	default:
		return string(s)
	}
}

// =============================================================================
// Intent Labels
// =============================================================================

// IntentLabel is the classified intent of a single user utterance.
type IntentLabel string

const (
	// IntentExperienceSharing marks an utterance where the user narrates
	// something they did or tried. Takes precedence over request keywords.
	IntentExperienceSharing IntentLabel = "experience_sharing"

	// IntentOpenQuestion is the default continue-dialogue label.
	IntentOpenQuestion IntentLabel = "open_question"

	// IntentKnowledgeRequest marks an explicit ask for material
	// ("send me the template", "show me an example script").
	IntentKnowledgeRequest IntentLabel = "explicit_knowledge_request"
)

// Valid reports whether l is one of the three known labels.
func (l IntentLabel) Valid() bool {
	switch l {
	case IntentExperienceSharing, IntentOpenQuestion, IntentKnowledgeRequest:
		return true
	}
	return false
}

// =============================================================================
// Messages
// =============================================================================

// Message roles. The coach never stores system prompts in session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single utterance in a session history.
//
// Messages are immutable once appended: sequence numbers are assigned at
// append time and the slice is never reordered.
type Message struct {
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	Seq       int         `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Intent    IntentLabel `json:"intent,omitempty"`
}

// =============================================================================
// Completeness Categories
// =============================================================================

// Category names one of the five context dimensions the completeness
// evaluator scores.
type Category string

const (
	CategoryProblemSpecificity Category = "problem_specificity"
	CategoryConcreteExamples   Category = "concrete_examples"
	CategoryGoals              Category = "goals_targets"
	CategorySkillBaseline      Category = "skill_baseline"
	CategoryResources          Category = "resources_constraints"
)

// Domain scoring constants. These are fixed points of the coaching flow,
// shared by the evaluator and every gateway provider.
const (
	// BaselineScore is the completeness score of a freshly started session,
	// before any answers arrive.
	BaselineScore = 10

	// PlanThreshold is the completeness score at which the dialogue stops
	// asking questions and generates the action plan.
	PlanThreshold = 80
)

// AllCategories lists the canonical categories in scoring order.
var AllCategories = []Category{
	CategoryProblemSpecificity,
	CategoryConcreteExamples,
	CategoryGoals,
	CategorySkillBaseline,
	CategoryResources,
}

// CompletenessAssessment is the evaluator's verdict for one turn.
//
// # Description
//
// Score is 0-100 over the full history. Missing lists the categories still
// below their satisfaction threshold, broadest gap first. StageHint is
// advisory only; the orchestrator owns the actual transition.
type CompletenessAssessment struct {
	Score     int        `json:"score"`
	Missing   []Category `json:"missing_categories"`
	StageHint Stage      `json:"stage_hint,omitempty"`
}

// =============================================================================
// Dialogue Session
// =============================================================================

// DialogueSession is the unit of state for one coaching conversation.
//
// # Description
//
// A session is owned by the session store and mutated only by the dialogue
// orchestrator under the per-session lock. Score is monotonically
// non-decreasing for the life of the session. Plan is attached exactly once,
// at the transition into the completed stage.
//
// # Thread Safety
//
// DialogueSession itself is not synchronized. Callers outside the
// orchestrator must work on copies obtained via Clone.
type DialogueSession struct {
	ID             string      `json:"session_id"`
	UserID         string      `json:"user_id"`
	ChannelID      string      `json:"channel_id,omitempty"`
	Messages       []Message   `json:"messages"`
	Stage          Stage       `json:"stage"`
	Score          int         `json:"completeness_score"`
	QuestionRounds int         `json:"question_rounds"`
	CreatedAt      time.Time   `json:"created_at"`
	LastActivityAt time.Time   `json:"last_activity_at"`
	Plan           *ActionPlan `json:"action_plan,omitempty"`
}

// NewDialogueSession creates a session in the initial stage with a fresh ID.
func NewDialogueSession(userID, channelID string) *DialogueSession {
	now := time.Now().UTC()
	return &DialogueSession{
		ID:             uuid.NewString(),
		UserID:         userID,
		ChannelID:      channelID,
		Messages:       []Message{},
		Stage:          StageInitial,
		Score:          0,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Append adds one message to the history, assigning the next sequence number,
// and bumps the activity timestamp. It returns the stored message.
func (s *DialogueSession) Append(role, content string, intent IntentLabel) Message {
	msg := Message{
		Role:      role,
		Content:   content,
		Seq:       len(s.Messages),
		Timestamp: time.Now().UTC(),
		Intent:    intent,
	}
	s.Messages = append(s.Messages, msg)
	s.LastActivityAt = msg.Timestamp
	return msg
}

// Terminal reports whether the session accepts further turns.
func (s *DialogueSession) Terminal() bool {
	return s.Stage.Terminal()
}

// UserMessages returns the user-role messages in order.
func (s *DialogueSession) UserMessages() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// Clone returns a deep copy safe to hand outside the orchestrator's lock.
func (s *DialogueSession) Clone() *DialogueSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = make([]Message, len(s.Messages))
	copy(cp.Messages, s.Messages)
	if s.Plan != nil {
		cp.Plan = s.Plan.Clone()
	}
	return &cp
}
