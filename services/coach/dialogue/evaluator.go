// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialogue

import (
	"context"
	"log/slog"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/gateway"
	"github.com/CoachPilotAI/CoachPilot/services/coach/observability"
)

// Evaluator scores how complete a session's gathered context is.
//
// # Description
//
// Delegates scoring to the language gateway and falls back to the
// deterministic heuristic scorer when the gateway fails. Evaluation
// never fails: a turn must always produce an assessment so the
// orchestrator can decide the next stage.
//
// # Thread Safety
//
// Safe for concurrent use.
type Evaluator struct {
	gateway  gateway.Gateway
	fallback *gateway.Deterministic
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator backed by the given gateway.
func NewEvaluator(gw gateway.Gateway, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		gateway:  gw,
		fallback: gateway.NewDeterministic(),
		logger:   logger,
	}
}

// Evaluate scores the session's user messages against the coaching
// readiness categories. Gateway failures degrade to the deterministic
// scorer rather than surfacing an error.
func (e *Evaluator) Evaluate(ctx context.Context, session *datatypes.DialogueSession) *datatypes.CompletenessAssessment {
	req := &gateway.ScoreRequest{Session: session}

	assessment, err := e.gateway.ScoreCompleteness(ctx, req)
	if err == nil && assessment != nil {
		return clampAssessment(assessment)
	}

	if err != nil {
		e.logger.Warn("completeness scoring degraded to heuristic",
			"session_id", session.ID,
			"gateway", e.gateway.Name(),
			"error", err,
		)
		observability.RecordGatewayFailure("score")
	}

	assessment, _ = e.fallback.ScoreCompleteness(ctx, req)
	return clampAssessment(assessment)
}

// clampAssessment keeps the score inside [0, 100].
func clampAssessment(a *datatypes.CompletenessAssessment) *datatypes.CompletenessAssessment {
	if a.Score < 0 {
		a.Score = 0
	}
	if a.Score > 100 {
		a.Score = 100
	}
	return a
}
