// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// Deterministic Provider
// =============================================================================

// Deterministic is a rule-based Gateway with no network dependency.
//
// # Description
//
// Used as the development backend, by the local chat REPL, and as the
// templated fallback source when a networked provider stays down. Scoring is
// density-driven: each user message contributes points according to how much
// concrete detail it carries, so one information-dense answer moves the score
// more than several terse ones.
//
// # Thread Safety
//
// Deterministic is stateless and safe for concurrent use.
type Deterministic struct{}

// NewDeterministic creates the rule-based provider.
func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

// Name implements the Gateway interface.
func (d *Deterministic) Name() string { return "deterministic" }

// Per-message score contributions. A rich message carries numbers or at
// least two domain keywords and enough length to hold real detail.
const (
	richMessagePoints  = 35
	terseMessagePoints = 15
	richMinRunes       = 20
)

// domainKeywords feed the richness test and the per-category evidence scan.
var domainKeywords = map[datatypes.Category][]string{
	datatypes.CategoryProblemSpecificity: {
		"problem", "challenge", "struggle", "difficult", "issue",
		"rate", "conversion", "rejected", "losing",
	},
	datatypes.CategoryConcreteExamples: {
		"tried", "example", "attempted", "last week", "yesterday",
		"script", "approach", "pattern", "when i",
	},
	datatypes.CategoryGoals: {
		"goal", "target", "aim", "want to", "improve", "increase",
		"double", "reach", "quota",
	},
	datatypes.CategorySkillBaseline: {
		"experience", "years", "new to", "background", "currently",
		"first time", "junior", "senior",
	},
	datatypes.CategoryResources: {
		"time", "budget", "team", "tool", "crm", "constraint",
		"hours", "manager", "training",
	},
}

// Classify implements the Gateway interface with marker rules.
func (d *Deterministic) Classify(ctx context.Context, utterance string, history []datatypes.Message) (*ClassifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(utterance)
	for _, marker := range experienceMarkers {
		if strings.Contains(lower, marker) {
			return &ClassifyResult{
				Label:      datatypes.IntentExperienceSharing,
				Confidence: 0.95,
				Rationale:  fmt.Sprintf("narrative marker %q", marker),
			}, nil
		}
	}
	for _, marker := range requestMarkers {
		if strings.Contains(lower, marker) {
			return &ClassifyResult{
				Label:      datatypes.IntentKnowledgeRequest,
				Confidence: 0.90,
				Rationale:  fmt.Sprintf("request marker %q", marker),
			}, nil
		}
	}
	return &ClassifyResult{
		Label:      datatypes.IntentOpenQuestion,
		Confidence: 0.80,
		Rationale:  "no marker matched",
	}, nil
}

// experienceMarkers signal first-person narration of something the user did.
// Checked before request markers: "for example, I called..." is sharing, not
// asking.
var experienceMarkers = []string{
	"for example, i", "for example i", "for instance, i", "for instance i",
	"in practice i", "what i did", "what i tried", "i tried", "i did",
	"i attempted", "i have been", "i've been", "last time i", "when i called",
	"my approach was",
}

// requestMarkers signal an explicit ask for material.
var requestMarkers = []string{
	"give me an example", "show me an example", "send me", "share the",
	"do you have a template", "send the template", "show me the script",
	"can i see", "what does a good", "share an example",
}

// ScoreCompleteness implements the Gateway interface.
//
// score = min(100, baseline + sum of per-user-message contributions).
func (d *Deterministic) ScoreCompleteness(ctx context.Context, req *ScoreRequest) (*datatypes.CompletenessAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	score := datatypes.BaselineScore
	for _, m := range req.Session.UserMessages() {
		score += messagePoints(m.Content)
	}
	if score > 100 {
		score = 100
	}

	return &datatypes.CompletenessAssessment{
		Score:   score,
		Missing: missingCategories(req.Session),
	}, nil
}

// messagePoints scores one utterance by information density.
func messagePoints(content string) int {
	if isRich(content) {
		return richMessagePoints
	}
	return terseMessagePoints
}

func isRich(content string) bool {
	if utf8.RuneCountInString(content) < richMinRunes {
		return false
	}
	if strings.ContainsFunc(content, unicode.IsDigit) || strings.Contains(content, "%") {
		return true
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, words := range domainKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				hits++
				break
			}
		}
	}
	return hits >= 2
}

// missingCategories returns categories with no keyword evidence anywhere in
// the user history, in canonical order (broadest assumed gap first).
func missingCategories(s *datatypes.DialogueSession) []datatypes.Category {
	var all strings.Builder
	for _, m := range s.UserMessages() {
		all.WriteString(strings.ToLower(m.Content))
		all.WriteByte('\n')
	}
	text := all.String()

	hasDigits := strings.ContainsFunc(text, unicode.IsDigit)
	missing := make([]datatypes.Category, 0, len(datatypes.AllCategories))
	for _, cat := range datatypes.AllCategories {
		if cat == datatypes.CategoryProblemSpecificity && hasDigits {
			continue
		}
		found := false
		for _, w := range domainKeywords[cat] {
			if strings.Contains(text, w) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, cat)
		}
	}
	return missing
}

// =============================================================================
// Question Battery
// =============================================================================

// questionBattery holds the canned follow-up questions per category.
var questionBattery = map[datatypes.Category][]string{
	datatypes.CategoryProblemSpecificity: {
		"What specific part of the process is giving you the most trouble right now?",
		"Roughly what numbers are you seeing today, for example calls made versus meetings booked?",
	},
	datatypes.CategoryConcreteExamples: {
		"Can you walk me through a recent call or deal that did not go the way you wanted?",
		"What approaches have you already tried, and what happened?",
	},
	datatypes.CategoryGoals: {
		"What result would make the next month a clear win for you?",
		"Is there a specific target or quota you are working toward?",
	},
	datatypes.CategorySkillBaseline: {
		"How long have you been doing this kind of selling, and what feels solid already?",
		"Which parts of the sales process do you feel most and least confident in?",
	},
	datatypes.CategoryResources: {
		"How much time per week can you realistically put into practicing this?",
		"What support do you have around you, like scripts, a CRM, or a manager who can review calls?",
	},
}

// GenerateQuestions implements the Gateway interface.
func (d *Deterministic) GenerateQuestions(ctx context.Context, req *QuestionRequest) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	max := req.MaxQuestions
	if max <= 0 || max > 5 {
		max = 5
	}

	missing := req.Missing
	if len(missing) == 0 {
		missing = datatypes.AllCategories
	}

	questions := make([]string, 0, max)
	// First question from every missing category, then second passes.
	for depth := 0; len(questions) < max && depth < 2; depth++ {
		for _, cat := range missing {
			battery := questionBattery[cat]
			if depth >= len(battery) {
				continue
			}
			questions = append(questions, battery[depth])
			if len(questions) == max {
				break
			}
		}
	}
	if len(questions) == 0 {
		questions = append(questions, "Tell me a bit more about your current situation.")
	}
	return questions, nil
}

// =============================================================================
// Plan Template
// =============================================================================

// GeneratePlan implements the Gateway interface with a three-item template
// plan grounded in the gathered context.
func (d *Deterministic) GeneratePlan(ctx context.Context, req *PlanRequest) (*datatypes.ActionPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := req.Session
	topic := "your sales goal"
	if msgs := s.UserMessages(); len(msgs) > 0 {
		topic = summarizeTopic(msgs[0].Content)
	}

	plan := datatypes.NewActionPlan(s.ID)
	plan.Summary = fmt.Sprintf("A focused two-week plan to make measurable progress on %s.", topic)
	plan.Items = []datatypes.ActionItem{
		{
			Title:           "Run a structured activity baseline",
			Description:     "For one week, log every outreach attempt with outcome and objection so the real numbers replace guesswork.",
			Priority:        datatypes.PriorityHigh,
			Category:        datatypes.CategoryProblemSpecificity,
			DueDate:         s.LastActivityAt.AddDate(0, 0, 7),
			SuccessCriteria: "A log covering at least 30 attempts with outcome recorded for each",
		},
		{
			Title:           "Rework the opening talk track",
			Description:     "Draft two alternative openings based on the most common objection in the baseline log and A/B them on live calls.",
			Priority:        datatypes.PriorityHigh,
			Category:        datatypes.CategoryConcreteExamples,
			DueDate:         s.LastActivityAt.AddDate(0, 0, 10),
			SuccessCriteria: "Each variant tested on at least 10 calls with pass-through rate compared",
		},
		{
			Title:           "Schedule a review checkpoint",
			Description:     "Book a 30 minute self-review (or manager review) to compare results against target and pick the next adjustment.",
			Priority:        datatypes.PriorityMedium,
			Category:        datatypes.CategoryGoals,
			DueDate:         s.LastActivityAt.AddDate(0, 0, 14),
			SuccessCriteria: "Review held and one concrete next adjustment written down",
		},
	}
	plan.Metrics = datatypes.PlanMetrics{
		SuccessIndicators:  []string{"outreach-to-meeting conversion rate", "objection frequency by type"},
		ReviewFrequency:    "weekly",
		EvaluationCriteria: []string{"baseline log completed", "variant test completed", "checkpoint held"},
	}
	return plan, nil
}

// summarizeTopic trims the first utterance down to a phrase usable in a
// summary sentence.
func summarizeTopic(content string) string {
	content = strings.TrimSpace(content)
	const maxRunes = 60
	if utf8.RuneCountInString(content) <= maxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxRunes]) + "..."
}
