// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the action plan types emitted when a session crosses the
// completeness threshold.
package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Action Plan Constraints
// =============================================================================

const (
	// MinPlanItems and MaxPlanItems bound the item count of a full plan.
	// The degraded single-item fallback plan is exempt from the minimum.
	MinPlanItems = 3
	MaxPlanItems = 6
)

// Priority ranks an action item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// =============================================================================
// Action Plan Types
// =============================================================================

// ActionItem is one concrete step in an action plan.
//
// # Description
//
// Every item carries a measurable success criterion and a due date. Due dates
// are staggered from the session's last activity: roughly week one for the
// first items, week two for the rest.
type ActionItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Priority        Priority  `json:"priority"`
	Category        Category  `json:"category,omitempty"`
	DueDate         time.Time `json:"due_date"`
	SuccessCriteria string    `json:"success_criteria"`
}

// PlanMetrics describes how progress against the plan should be tracked.
type PlanMetrics struct {
	SuccessIndicators  []string `json:"success_indicators,omitempty"`
	ReviewFrequency    string   `json:"review_frequency,omitempty"`
	EvaluationCriteria []string `json:"evaluation_criteria,omitempty"`
}

// ActionPlan is the terminal artifact of a coaching session.
//
// # Description
//
// A plan is generated exactly once, when the session's completeness score
// crosses the planning threshold (or the question ceiling forces planning
// with best-available context). Plans are immutable after generation.
// Fallback marks the degraded single-item plan produced when the gateway
// could not deliver a usable structured plan.
type ActionPlan struct {
	ID          string       `json:"plan_id"`
	SessionID   string       `json:"session_id"`
	Summary     string       `json:"summary"`
	Items       []ActionItem `json:"items"`
	Metrics     PlanMetrics  `json:"metrics"`
	GeneratedAt time.Time    `json:"generated_at"`
	Fallback    bool         `json:"fallback,omitempty"`
}

// NewActionPlan creates an empty plan shell with a fresh ID and timestamp.
func NewActionPlan(sessionID string) *ActionPlan {
	return &ActionPlan{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the plan.
func (p *ActionPlan) Clone() *ActionPlan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Items = make([]ActionItem, len(p.Items))
	copy(cp.Items, p.Items)
	cp.Metrics.SuccessIndicators = append([]string(nil), p.Metrics.SuccessIndicators...)
	cp.Metrics.EvaluationCriteria = append([]string(nil), p.Metrics.EvaluationCriteria...)
	return &cp
}
