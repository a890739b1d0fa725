// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// OpenAI-Backed Provider
// =============================================================================

// OpenAIGateway implements Gateway against the OpenAI chat completions API.
//
// # Description
//
// Each capability call issues one chat completion with a task-specific system
// prompt and parses a JSON object out of the reply. Transport and rate-limit
// failures are mapped to ErrUnavailable, deadline expiry to ErrTimeout, so
// the dialogue layer can apply its retry-then-fallback policy uniformly.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying client is stateless per call.
type OpenAIGateway struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGateway creates the OpenAI provider.
//
// The API key is read from OPENAI_API_KEY, falling back to the container
// secret at /run/secrets/openai_api_key. The model defaults to gpt-4o-mini.
func NewOpenAIGateway() (*OpenAIGateway, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API key from container secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI gateway", "model", model)
	return &OpenAIGateway{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: 15 * time.Second,
	}, nil
}

// Name implements the Gateway interface.
func (g *OpenAIGateway) Name() string { return "openai" }

// WithModel overrides the model name. Call before first use.
func (g *OpenAIGateway) WithModel(model string) *OpenAIGateway {
	if model != "" {
		g.model = model
	}
	return g
}

// complete runs one chat completion and returns the raw text reply.
func (g *OpenAIGateway) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:               g.model,
		Temperature:         0.2,
		MaxCompletionTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", mapProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// mapProviderError folds transport failures into the gateway sentinels.
func mapProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		// 4xx other than rate limiting is a programming error, surface as-is.
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// transcript renders history for inclusion in prompts.
func transcript(history []datatypes.Message) string {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// extractJSON pulls the first JSON object out of a model reply, tolerating
// markdown code fences and prose around the object.
func extractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		content = strings.TrimPrefix(content, "json")
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return content[start : end+1], nil
}

// =============================================================================
// Classify
// =============================================================================

const classifySystemPrompt = `You classify one utterance from a sales rep in a coaching conversation.
Labels:
- experience_sharing: the rep narrates something they did or tried. Phrases like "for example, I called..." are experience_sharing even when they contain words like "example".
- explicit_knowledge_request: the rep explicitly asks to be given material (a template, a sample script, an example document).
- open_question: anything else, including answers and general questions.
Reply with only a JSON object: {"label": "...", "confidence": 0.0-1.0, "rationale": "..."}`

// Classify implements the Gateway interface.
func (g *OpenAIGateway) Classify(ctx context.Context, utterance string, history []datatypes.Message) (*ClassifyResult, error) {
	user := fmt.Sprintf("Conversation so far:\n%s\nUtterance to classify:\n%s", transcript(history), utterance)
	content, err := g.complete(ctx, classifySystemPrompt, user, 256)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("classify response: %w", err)
	}
	var result ClassifyResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("classify response: %w", err)
	}
	if !result.Label.Valid() {
		return nil, fmt.Errorf("classify response: unknown label %q", result.Label)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("classify response: confidence %f out of range", result.Confidence)
	}
	return &result, nil
}

// =============================================================================
// Score Completeness
// =============================================================================

const scoreSystemPrompt = `You assess how complete the context gathered in a sales coaching conversation is, from 0 to 100.
Judge information density, not message count: a single detailed answer with numbers and specifics is worth more than several vague ones.
Categories to cover: problem_specificity, concrete_examples, goals_targets, skill_baseline, resources_constraints.
Reply with only a JSON object: {"score": 0-100, "missing_categories": ["..."]} listing categories still lacking substance, broadest gap first.`

// ScoreCompleteness implements the Gateway interface.
func (g *OpenAIGateway) ScoreCompleteness(ctx context.Context, req *ScoreRequest) (*datatypes.CompletenessAssessment, error) {
	content, err := g.complete(ctx, scoreSystemPrompt, transcript(req.Session.Messages), 256)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("score response: %w", err)
	}
	var parsed struct {
		Score   int                  `json:"score"`
		Missing []datatypes.Category `json:"missing_categories"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("score response: %w", err)
	}
	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 100 {
		parsed.Score = 100
	}
	return &datatypes.CompletenessAssessment{Score: parsed.Score, Missing: parsed.Missing}, nil
}

// =============================================================================
// Generate Questions
// =============================================================================

const questionsSystemPrompt = `You are a sales coach gathering context before building an action plan.
Write short, concrete follow-up questions a rep can answer in one message.
Target the listed missing categories, broadest gap first. Never re-ask about a category that is not listed.
Reply with only a JSON object: {"questions": ["..."]}`

// GenerateQuestions implements the Gateway interface.
func (g *OpenAIGateway) GenerateQuestions(ctx context.Context, req *QuestionRequest) ([]string, error) {
	max := req.MaxQuestions
	if max <= 0 || max > 5 {
		max = 5
	}
	missing := make([]string, 0, len(req.Missing))
	for _, c := range req.Missing {
		missing = append(missing, string(c))
	}
	user := fmt.Sprintf("Conversation so far:\n%s\nMissing categories: %s\nWrite at most %d questions.",
		transcript(req.Session.Messages), strings.Join(missing, ", "), max)

	content, err := g.complete(ctx, questionsSystemPrompt, user, 512)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("questions response: %w", err)
	}
	var parsed struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("questions response: %w", err)
	}
	if len(parsed.Questions) == 0 {
		return nil, fmt.Errorf("questions response: empty question list")
	}
	if len(parsed.Questions) > max {
		parsed.Questions = parsed.Questions[:max]
	}
	return parsed.Questions, nil
}

// =============================================================================
// Generate Plan
// =============================================================================

const planSystemPrompt = `You are a sales coach writing the final action plan for a rep, based on the full conversation.
Produce 3 to 6 items. Every item needs a title, a description, a priority (high, medium or low), a due offset in days (7 or 14), and a measurable success criterion.
Reply with only a JSON object:
{"summary": "...", "items": [{"title": "...", "description": "...", "priority": "high", "due_in_days": 7, "success_criteria": "..."}], "metrics": {"success_indicators": ["..."], "review_frequency": "weekly", "evaluation_criteria": ["..."]}}`

// GeneratePlan implements the Gateway interface.
func (g *OpenAIGateway) GeneratePlan(ctx context.Context, req *PlanRequest) (*datatypes.ActionPlan, error) {
	content, err := g.complete(ctx, planSystemPrompt, transcript(req.Session.Messages), 1024)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("plan response: %w", err)
	}
	var parsed struct {
		Summary string `json:"summary"`
		Items   []struct {
			Title           string `json:"title"`
			Description     string `json:"description"`
			Priority        string `json:"priority"`
			DueInDays       int    `json:"due_in_days"`
			SuccessCriteria string `json:"success_criteria"`
		} `json:"items"`
		Metrics datatypes.PlanMetrics `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("plan response: %w", err)
	}
	if len(parsed.Items) < datatypes.MinPlanItems || len(parsed.Items) > datatypes.MaxPlanItems {
		return nil, fmt.Errorf("plan response: %d items outside %d-%d",
			len(parsed.Items), datatypes.MinPlanItems, datatypes.MaxPlanItems)
	}

	plan := datatypes.NewActionPlan(req.Session.ID)
	plan.Summary = parsed.Summary
	plan.Metrics = parsed.Metrics
	for _, it := range parsed.Items {
		prio := datatypes.Priority(it.Priority)
		if !prio.Valid() {
			prio = datatypes.PriorityMedium
		}
		due := it.DueInDays
		if due <= 0 || due > 28 {
			due = 7
		}
		if it.SuccessCriteria == "" {
			return nil, fmt.Errorf("plan response: item %q missing success criteria", it.Title)
		}
		plan.Items = append(plan.Items, datatypes.ActionItem{
			ID:              fmt.Sprintf("%s-%d", plan.ID[:8], len(plan.Items)+1),
			Title:           it.Title,
			Description:     it.Description,
			Priority:        prio,
			DueDate:         req.Session.LastActivityAt.AddDate(0, 0, due),
			SuccessCriteria: it.SuccessCriteria,
		})
	}
	return plan, nil
}
