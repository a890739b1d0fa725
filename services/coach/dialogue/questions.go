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

// Question count bounds for a single round.
const (
	minQuestionsPerRound = 1
	maxQuestionsPerRound = 5
)

// QuestionGenerator produces follow-up questions targeting the categories
// an assessment marked as missing.
//
// # Thread Safety
//
// Safe for concurrent use.
type QuestionGenerator struct {
	gateway  gateway.Gateway
	fallback *gateway.Deterministic
	logger   *slog.Logger
}

// NewQuestionGenerator creates a QuestionGenerator backed by the gateway.
func NewQuestionGenerator(gw gateway.Gateway, logger *slog.Logger) *QuestionGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionGenerator{
		gateway:  gw,
		fallback: gateway.NewDeterministic(),
		logger:   logger,
	}
}

// Generate returns between minQuestions and maxQuestionsPerRound questions
// aimed at the assessment's missing categories. Gateway failures degrade
// to the deterministic question battery. Satisfied categories are never
// asked about because only Missing categories reach the generators.
func (g *QuestionGenerator) Generate(ctx context.Context, session *datatypes.DialogueSession, assessment *datatypes.CompletenessAssessment, minQuestions int) []string {
	missing := assessment.Missing
	if len(missing) == 0 {
		// Nothing is missing but the score is still below threshold.
		// Probe the weakest signal rather than going silent.
		missing = []datatypes.Category{datatypes.CategoryConcreteExamples}
	}

	req := &gateway.QuestionRequest{
		Session:      session,
		Missing:      missing,
		MaxQuestions: maxQuestionsPerRound,
	}

	questions, err := g.gateway.GenerateQuestions(ctx, req)
	if err != nil {
		g.logger.Warn("question generation degraded to template battery",
			"session_id", session.ID,
			"gateway", g.gateway.Name(),
			"error", err,
		)
		observability.RecordGatewayFailure("questions")
		questions, _ = g.fallback.GenerateQuestions(ctx, req)
	}

	if minQuestions < minQuestionsPerRound {
		minQuestions = minQuestionsPerRound
	}
	if len(questions) < minQuestions {
		questions = g.pad(ctx, req, questions, minQuestions)
	}
	if len(questions) > maxQuestionsPerRound {
		questions = questions[:maxQuestionsPerRound]
	}
	return questions
}

// pad tops up a short question list from the deterministic battery,
// skipping duplicates of what the gateway already produced.
func (g *QuestionGenerator) pad(ctx context.Context, req *gateway.QuestionRequest, questions []string, minQuestions int) []string {
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		seen[q] = true
	}

	extra, _ := g.fallback.GenerateQuestions(ctx, req)
	for _, q := range extra {
		if len(questions) >= minQuestions {
			break
		}
		if seen[q] {
			continue
		}
		seen[q] = true
		questions = append(questions, q)
	}
	return questions
}
