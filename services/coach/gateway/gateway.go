// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gateway defines the LLM capability interface the dialogue engine
// depends on, plus the concrete providers: an OpenAI-backed implementation,
// a deterministic rule-based implementation for development and tests, and a
// retrying wrapper shared by both.
package gateway

import (
	"context"
	"errors"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnavailable indicates the provider could not be reached or refused
	// the call. Non-fatal: callers degrade to templated output.
	ErrUnavailable = errors.New("gateway unavailable")

	// ErrTimeout indicates the provider did not answer within the call
	// deadline. Non-fatal, same degradation path as ErrUnavailable.
	ErrTimeout = errors.New("gateway timeout")
)

// IsTransient reports whether err is a gateway availability failure that is
// worth one retry before falling back.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

// =============================================================================
// Capability Interface
// =============================================================================

// ClassifyResult is the provider's verdict on a single utterance.
type ClassifyResult struct {
	Label      datatypes.IntentLabel `json:"label"`
	Confidence float64               `json:"confidence"`
	Rationale  string                `json:"rationale,omitempty"`
}

// QuestionRequest asks the provider for follow-up questions targeting the
// listed missing categories. MaxQuestions bounds the batch size.
type QuestionRequest struct {
	Session      *datatypes.DialogueSession
	Missing      []datatypes.Category
	MaxQuestions int
}

// ScoreRequest asks the provider for a completeness assessment over the full
// ordered history.
type ScoreRequest struct {
	Session *datatypes.DialogueSession
}

// PlanRequest asks the provider for an action plan from the accumulated
// context and the final assessment.
type PlanRequest struct {
	Session    *datatypes.DialogueSession
	Assessment *datatypes.CompletenessAssessment
}

// Gateway is the LLM capability surface used by the dialogue engine.
//
// # Description
//
// Every method takes a context and honors its deadline. Availability
// failures are reported as ErrUnavailable or ErrTimeout (possibly wrapped);
// both are non-fatal and callers fall back to templated output after one
// retry. Implementations must be safe for concurrent use.
type Gateway interface {
	// Classify labels one utterance given the session history so far.
	Classify(ctx context.Context, utterance string, history []datatypes.Message) (*ClassifyResult, error)

	// GenerateQuestions produces 1..MaxQuestions follow-up questions,
	// broadest gap first.
	GenerateQuestions(ctx context.Context, req *QuestionRequest) ([]string, error)

	// ScoreCompleteness assesses how complete the gathered context is.
	ScoreCompleteness(ctx context.Context, req *ScoreRequest) (*datatypes.CompletenessAssessment, error)

	// GeneratePlan produces the terminal action plan.
	GeneratePlan(ctx context.Context, req *PlanRequest) (*datatypes.ActionPlan, error)

	// Name identifies the provider for logs and metrics.
	Name() string
}
