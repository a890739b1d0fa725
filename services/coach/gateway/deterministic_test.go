// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"context"
	"testing"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// Classification Tests
// =============================================================================

func TestDeterministic_Classify(t *testing.T) {
	d := NewDeterministic()

	tests := []struct {
		name      string
		utterance string
		want      datatypes.IntentLabel
	}{
		{
			name:      "narrative beats request keyword",
			utterance: "For example, I tried calling prospects at 8am and asking for referrals",
			want:      datatypes.IntentExperienceSharing,
		},
		{
			name:      "plain experience",
			utterance: "I did three demo calls yesterday and all of them stalled",
			want:      datatypes.IntentExperienceSharing,
		},
		{
			name:      "explicit material request",
			utterance: "Can you give me an example script for the first thirty seconds?",
			want:      datatypes.IntentKnowledgeRequest,
		},
		{
			name:      "template request",
			utterance: "Do you have a template for follow-up emails?",
			want:      datatypes.IntentKnowledgeRequest,
		},
		{
			name:      "ordinary answer",
			utterance: "Mostly enterprise accounts in manufacturing",
			want:      datatypes.IntentOpenQuestion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := d.Classify(context.Background(), tt.utterance, nil)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if result.Label != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.utterance, result.Label, tt.want)
			}
			if result.Confidence < 0.7 {
				t.Errorf("expected confident rule match, got %f", result.Confidence)
			}
		})
	}
}

// =============================================================================
// Scoring Tests
// =============================================================================

func TestDeterministic_ScoreCompleteness_DensityDriven(t *testing.T) {
	d := NewDeterministic()
	ctx := context.Background()

	s := datatypes.NewDialogueSession("U1", "")
	s.Append(datatypes.RoleUser, "new customer acquisition", "")

	first, err := d.ScoreCompleteness(ctx, &ScoreRequest{Session: s})
	if err != nil {
		t.Fatalf("ScoreCompleteness() error = %v", err)
	}
	if first.Score >= 45 {
		t.Errorf("opening context alone scored %d, expected a low score", first.Score)
	}

	s.Append(datatypes.RoleUser,
		"IT sector cold calling, close rate is about 5%, tried two script approaches last week", "")
	second, err := d.ScoreCompleteness(ctx, &ScoreRequest{Session: s})
	if err != nil {
		t.Fatalf("ScoreCompleteness() error = %v", err)
	}
	if second.Score < 45 {
		t.Errorf("rich answer scored %d, want >= 45", second.Score)
	}
	if second.Score >= datatypes.PlanThreshold {
		t.Errorf("one rich answer scored %d, expected below the plan threshold", second.Score)
	}

	s.Append(datatypes.RoleUser,
		"My goal is to double booked meetings to 10 per week, I have 5 hours and a CRM to work with", "")
	third, err := d.ScoreCompleteness(ctx, &ScoreRequest{Session: s})
	if err != nil {
		t.Fatalf("ScoreCompleteness() error = %v", err)
	}
	if third.Score < datatypes.PlanThreshold {
		t.Errorf("two rich answers scored %d, want >= %d", third.Score, datatypes.PlanThreshold)
	}
	if third.Score > 100 {
		t.Errorf("score %d above 100", third.Score)
	}
}

func TestDeterministic_ScoreCompleteness_RichBeatsTerse(t *testing.T) {
	d := NewDeterministic()
	ctx := context.Background()

	terse := datatypes.NewDialogueSession("U1", "")
	terse.Append(datatypes.RoleUser, "cold calls", "")
	terse.Append(datatypes.RoleUser, "not sure", "")

	rich := datatypes.NewDialogueSession("U2", "")
	rich.Append(datatypes.RoleUser,
		"Cold calling enterprise IT leads, about 40 dials a day with a 2% meeting rate", "")

	terseScore, err := d.ScoreCompleteness(ctx, &ScoreRequest{Session: terse})
	if err != nil {
		t.Fatalf("ScoreCompleteness() error = %v", err)
	}
	richScore, err := d.ScoreCompleteness(ctx, &ScoreRequest{Session: rich})
	if err != nil {
		t.Fatalf("ScoreCompleteness() error = %v", err)
	}

	if richScore.Score <= terseScore.Score {
		t.Errorf("one rich message scored %d, two terse scored %d; density should win",
			richScore.Score, terseScore.Score)
	}
}

func TestDeterministic_MissingCategories(t *testing.T) {
	d := NewDeterministic()

	s := datatypes.NewDialogueSession("U1", "")
	s.Append(datatypes.RoleUser, "My goal is to increase my quota attainment", "")

	result, err := d.ScoreCompleteness(context.Background(), &ScoreRequest{Session: s})
	if err != nil {
		t.Fatalf("ScoreCompleteness() error = %v", err)
	}

	for _, cat := range result.Missing {
		if cat == datatypes.CategoryGoals {
			t.Error("goals category reported missing despite explicit goal statement")
		}
	}
	if len(result.Missing) == 0 {
		t.Error("expected unaddressed categories to be reported missing")
	}
}

// =============================================================================
// Question and Plan Tests
// =============================================================================

func TestDeterministic_GenerateQuestions_Bounds(t *testing.T) {
	d := NewDeterministic()
	s := datatypes.NewDialogueSession("U1", "")

	tests := []struct {
		name    string
		missing []datatypes.Category
		max     int
		wantMin int
		wantMax int
	}{
		{name: "all missing capped at five", missing: datatypes.AllCategories, max: 5, wantMin: 5, wantMax: 5},
		{name: "single gap", missing: []datatypes.Category{datatypes.CategoryResources}, max: 5, wantMin: 1, wantMax: 2},
		{name: "max below gap count", missing: datatypes.AllCategories, max: 2, wantMin: 2, wantMax: 2},
		{name: "nothing missing still asks", missing: nil, max: 3, wantMin: 1, wantMax: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := d.GenerateQuestions(context.Background(), &QuestionRequest{
				Session: s, Missing: tt.missing, MaxQuestions: tt.max,
			})
			if err != nil {
				t.Fatalf("GenerateQuestions() error = %v", err)
			}
			if len(qs) < tt.wantMin || len(qs) > tt.wantMax {
				t.Errorf("got %d questions, want between %d and %d", len(qs), tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestDeterministic_GeneratePlan_Shape(t *testing.T) {
	d := NewDeterministic()
	s := datatypes.NewDialogueSession("U1", "")
	s.Append(datatypes.RoleUser, "improving my cold call close rate", "")

	plan, err := d.GeneratePlan(context.Background(), &PlanRequest{
		Session:    s,
		Assessment: &datatypes.CompletenessAssessment{Score: 85},
	})
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}

	if len(plan.Items) < datatypes.MinPlanItems || len(plan.Items) > datatypes.MaxPlanItems {
		t.Fatalf("plan has %d items, want %d-%d", len(plan.Items), datatypes.MinPlanItems, datatypes.MaxPlanItems)
	}
	for i, item := range plan.Items {
		if item.SuccessCriteria == "" {
			t.Errorf("item %d has no success criteria", i)
		}
		if !item.Priority.Valid() {
			t.Errorf("item %d has invalid priority %q", i, item.Priority)
		}
		if !item.DueDate.After(s.LastActivityAt) {
			t.Errorf("item %d due date %v not after last activity %v", i, item.DueDate, s.LastActivityAt)
		}
	}
	if plan.SessionID != s.ID {
		t.Errorf("plan session id %q, want %q", plan.SessionID, s.ID)
	}
}
