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
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/gateway"
	"github.com/CoachPilotAI/CoachPilot/services/coach/observability"
)

// Planner turns a completed session into an action plan.
//
// # Description
//
// Delegates plan generation to the language gateway. A session that has
// crossed the completeness threshold must always end with some plan, so
// gateway failures and malformed plans degrade to a minimal single-item
// follow-up plan flagged as a fallback.
//
// # Thread Safety
//
// Safe for concurrent use.
type Planner struct {
	gateway gateway.Gateway
	logger  *slog.Logger
}

// NewPlanner creates a Planner backed by the given gateway.
func NewPlanner(gw gateway.Gateway, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{gateway: gw, logger: logger}
}

// Generate produces the session's action plan. Never returns nil.
func (p *Planner) Generate(ctx context.Context, session *datatypes.DialogueSession, assessment *datatypes.CompletenessAssessment) *datatypes.ActionPlan {
	req := &gateway.PlanRequest{Session: session, Assessment: assessment}

	plan, err := p.gateway.GeneratePlan(ctx, req)
	if err == nil && validPlan(plan) {
		observability.RecordPlan(plan.Fallback)
		return plan
	}

	if err != nil {
		p.logger.Warn("plan generation degraded to minimal fallback",
			"session_id", session.ID,
			"gateway", p.gateway.Name(),
			"error", err,
		)
	} else {
		p.logger.Warn("plan generation returned malformed plan, using minimal fallback",
			"session_id", session.ID,
			"gateway", p.gateway.Name(),
		)
	}
	observability.RecordGatewayFailure("plan")

	plan = minimalPlan(session)
	observability.RecordPlan(true)
	return plan
}

// validPlan checks the structural shape callers rely on.
func validPlan(plan *datatypes.ActionPlan) bool {
	if plan == nil {
		return false
	}
	if len(plan.Items) < datatypes.MinPlanItems || len(plan.Items) > datatypes.MaxPlanItems {
		return false
	}
	for _, item := range plan.Items {
		if item.Title == "" || item.SuccessCriteria == "" {
			return false
		}
	}
	return true
}

// minimalPlan is the last-resort plan when generation fails outright.
// It deliberately carries a single item despite the normal 3-item floor.
func minimalPlan(session *datatypes.DialogueSession) *datatypes.ActionPlan {
	plan := datatypes.NewActionPlan(session.ID)
	plan.Summary = "We could not assemble a full coaching plan right now. Start with a follow-up review and we will build it out from there."
	plan.Fallback = true
	plan.Items = []datatypes.ActionItem{
		{
			ID:              "fallback-1",
			Title:           "Schedule a follow-up review",
			Description:     "Book a 30 minute session to revisit your situation and build out a complete action plan.",
			Priority:        datatypes.PriorityHigh,
			Category:        datatypes.CategoryGoals,
			DueDate:         session.LastActivityAt.AddDate(0, 0, 7).Truncate(24 * time.Hour),
			SuccessCriteria: "Follow-up session booked within one week.",
		},
	}
	plan.Metrics = datatypes.PlanMetrics{
		SuccessIndicators:  []string{"Follow-up review completed"},
		ReviewFrequency:    "weekly",
		EvaluationCriteria: []string{"Full action plan produced in the follow-up session."},
	}
	return plan
}
