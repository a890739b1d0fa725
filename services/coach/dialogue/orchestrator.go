// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dialogue implements the coaching session state machine.
//
// # Description
//
// The orchestrator is the single writer for session state. Every turn runs
// under a per-session lock and follows the same shape: classify the
// utterance, fold in reference material on an explicit knowledge request,
// re-score completeness, then either ask more questions or emit the action
// plan. The completeness score never decreases, and a session that crossed
// the planning threshold (or exhausted its question rounds) always ends
// with a plan.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Turns against the same
// session are serialized; turns against different sessions run in parallel.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/gateway"
	"github.com/CoachPilotAI/CoachPilot/services/coach/intent"
	"github.com/CoachPilotAI/CoachPilot/services/coach/knowledge"
	"github.com/CoachPilotAI/CoachPilot/services/coach/observability"
	"github.com/CoachPilotAI/CoachPilot/services/coach/store"
)

// ===== Configuration =====

// Config controls orchestrator behavior.
type Config struct {
	// MaxQuestionRounds caps how many question rounds a session may run.
	// The turn arriving after the cap forces plan generation with the
	// best available context.
	MaxQuestionRounds int

	// MinInitialQuestions is the floor for the opening question set.
	MinInitialQuestions int

	// TerminationKeywords close the session when a turn consists of
	// exactly one of them (case-insensitive).
	TerminationKeywords []string

	// BotUserID identifies the service's own channel identity so its
	// echoed messages are never processed as user turns.
	BotUserID string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxQuestionRounds:   4,
		MinInitialQuestions: 3,
		TerminationKeywords: []string{"stop", "quit", "end session"},
	}
}

// Validate checks configuration bounds.
func (c *Config) Validate() error {
	if c.MaxQuestionRounds < 1 {
		return fmt.Errorf("MaxQuestionRounds must be at least 1, got %d", c.MaxQuestionRounds)
	}
	if c.MinInitialQuestions < minQuestionsPerRound || c.MinInitialQuestions > maxQuestionsPerRound {
		return fmt.Errorf("MinInitialQuestions must be between %d and %d, got %d",
			minQuestionsPerRound, maxQuestionsPerRound, c.MinInitialQuestions)
	}
	return nil
}

// ===== Orchestrator =====

// Orchestrator coordinates sessions, classification, scoring, questioning
// and planning.
//
// # Description
//
// Owns the session lifecycle: Start creates a session from an initial
// context, Process advances it one turn, Terminate archives it, and
// HandleEvent adapts raw channel events (with duplicate suppression and
// self-echo filtering) onto those operations.
//
// # Thread Safety
//
// Safe for concurrent use.
type Orchestrator struct {
	store      store.Store
	classifier *intent.Classifier
	evaluator  *Evaluator
	questions  *QuestionGenerator
	planner    *Planner
	knowledge  knowledge.Searcher
	dedup      *store.DedupCache
	locks      *lockTable
	config     Config
	logger     *slog.Logger
}

// NewOrchestrator wires an orchestrator from its collaborators.
//
// # Inputs
//
//   - st: Session store. Required.
//   - gw: Language gateway for scoring, questions and plans. Required.
//   - classifier: Intent classifier. Required.
//   - searcher: Knowledge searcher. May be nil to disable reference folding.
//   - dedup: Duplicate suppression cache for channel events. May be nil.
//   - config: Behavior knobs. Zero value is replaced by DefaultConfig().
//   - logger: Structured logger. May be nil for slog.Default().
func NewOrchestrator(st store.Store, gw gateway.Gateway, classifier *intent.Classifier, searcher knowledge.Searcher, dedup *store.DedupCache, config Config, logger *slog.Logger) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if config.MaxQuestionRounds == 0 && config.MinInitialQuestions == 0 && config.TerminationKeywords == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:      st,
		classifier: classifier,
		evaluator:  NewEvaluator(gw, logger),
		questions:  NewQuestionGenerator(gw, logger),
		planner:    NewPlanner(gw, logger),
		knowledge:  searcher,
		dedup:      dedup,
		locks:      newLockTable(),
		config:     config,
		logger:     logger,
	}, nil
}

// ===== Session Lifecycle =====

// Start creates a session seeded with the user's initial context and
// returns the opening question set.
//
// # Inputs
//
//   - ctx: Request context.
//   - userID: Owner of the session.
//   - channelID: Originating channel, may be empty for direct API use.
//   - initialContext: The user's opening description of their situation.
//
// # Outputs
//
//   - *datatypes.StartSessionResponse: Session ID, stage, baseline score
//     and 3-5 opening questions.
//   - error: ErrInvalidContext when initialContext is empty or whitespace.
func (o *Orchestrator) Start(ctx context.Context, userID, channelID, initialContext string) (*datatypes.StartSessionResponse, error) {
	ctx, span := otel.Tracer("dialogue").Start(ctx, "dialogue.Orchestrator.Start",
		trace.WithAttributes(attribute.String("user_id", userID)),
	)
	defer span.End()

	trimmed := strings.TrimSpace(initialContext)
	if trimmed == "" {
		return nil, ErrInvalidContext
	}

	session := datatypes.NewDialogueSession(userID, channelID)
	session.Score = datatypes.BaselineScore

	label := datatypes.IntentOpenQuestion
	if res, err := o.classifier.Classify(ctx, trimmed, nil); err == nil {
		label = res.Label
	}
	session.Append(datatypes.RoleUser, trimmed, label)

	// Target the opening questions at whatever the initial context left
	// unanswered. The score itself stays at the baseline until the first
	// real turn.
	assessment := o.evaluator.Evaluate(ctx, session)
	questions := o.questions.Generate(ctx, session, assessment, o.config.MinInitialQuestions)

	session.QuestionRounds = 1
	session.Append(datatypes.RoleAssistant, joinQuestions(questions), "")

	if err := o.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("persisting new session: %w", err)
	}

	observability.RecordSession("started")
	observability.AddActiveSessions(1)
	o.logger.Info("session started",
		"session_id", session.ID,
		"user_id", userID,
		"questions", len(questions),
	)

	return &datatypes.StartSessionResponse{
		SessionID: session.ID,
		Stage:     session.Stage,
		Score:     session.Score,
		Questions: questions,
	}, nil
}

// Process advances a session by one user turn.
//
// # Description
//
// Runs the full turn pipeline under the session lock. The response is a
// follow-up question set while context is still incomplete and the final
// action plan once the completeness score reaches the planning threshold
// or the question ceiling is hit. Resubmitting a turn to a completed
// session re-delivers the existing plan.
//
// # Outputs
//
//   - *datatypes.TurnResponse: follow_up or action_plan payload.
//   - error: ErrSessionNotFound for unknown or expired sessions,
//     ErrSessionClosed for archived ones.
func (o *Orchestrator) Process(ctx context.Context, sessionID, text string) (*datatypes.TurnResponse, error) {
	ctx, span := otel.Tracer("dialogue").Start(ctx, "dialogue.Orchestrator.Process",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()
	startTime := time.Now()

	release := o.locks.Acquire(sessionID)
	defer release()

	session, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Stage {
	case datatypes.StageArchived:
		return nil, ErrSessionClosed
	case datatypes.StageCompleted:
		// Duplicate delivery after completion is harmless.
		return planResponse(session), nil
	}

	if o.isTermination(text) {
		return o.archiveLocked(ctx, session, text)
	}

	res, err := o.classifier.Classify(ctx, text, session.Messages)
	if err != nil {
		return nil, fmt.Errorf("classifying turn: %w", err)
	}

	session.Append(datatypes.RoleUser, text, res.Label)
	if session.Stage == datatypes.StageInitial {
		session.Stage = datatypes.StageGathering
	}

	if res.Label == datatypes.IntentKnowledgeRequest {
		o.foldKnowledge(ctx, session, text)
	}

	assessment := o.evaluator.Evaluate(ctx, session)
	if assessment.Score > session.Score {
		session.Score = assessment.Score
	}

	forced := session.QuestionRounds >= o.config.MaxQuestionRounds
	var resp *datatypes.TurnResponse
	if session.Score >= datatypes.PlanThreshold || forced {
		resp = o.finalize(ctx, session, assessment, forced)
	} else {
		resp = o.askMore(ctx, session, assessment)
	}

	if err := o.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("persisting session turn: %w", err)
	}

	observability.RecordTurn(resp.Type, string(res.Label), time.Since(startTime).Seconds())
	return resp, nil
}

// Get returns a point-in-time snapshot of the session. The snapshot is
// taken under the session lock so it never observes a half-applied turn.
func (o *Orchestrator) Get(ctx context.Context, sessionID string) (*datatypes.DialogueSession, error) {
	release := o.locks.Acquire(sessionID)
	defer release()

	session, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// Terminate archives a session. Terminating an already archived session
// is a no-op.
func (o *Orchestrator) Terminate(ctx context.Context, sessionID string) error {
	release := o.locks.Acquire(sessionID)
	defer release()

	session, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Stage == datatypes.StageArchived {
		return nil
	}

	wasTerminal := session.Terminal()
	session.Stage = datatypes.StageArchived
	session.LastActivityAt = time.Now().UTC()
	if err := o.store.Put(ctx, session); err != nil {
		return fmt.Errorf("archiving session: %w", err)
	}

	observability.RecordSession("archived")
	if !wasTerminal {
		observability.AddActiveSessions(-1)
	}
	o.logger.Info("session archived", "session_id", sessionID)
	return nil
}

// ===== Channel Event Handling =====

// HandleEvent adapts a raw channel event onto the session lifecycle.
//
// # Description
//
// Filters the service's own echoed messages, suppresses duplicate
// deliveries within the dedup window (re-serving the original response),
// routes the text to the user's active session, and starts a new session
// when none exists.
//
// # Outputs
//
//   - *datatypes.TurnResponse: nil for filtered self events.
//   - error: Non-nil on classification or persistence failure.
func (o *Orchestrator) HandleEvent(ctx context.Context, event *datatypes.InboundEvent) (*datatypes.TurnResponse, error) {
	if event.FromSelf(o.config.BotUserID) {
		observability.RecordEvent("self")
		return nil, nil
	}

	key := event.DedupKey()
	if o.dedup != nil {
		// Identical deliveries serialize on the event key so a concurrent
		// duplicate waits for the first to record its response instead of
		// racing past the lookup.
		release := o.locks.Acquire("event:" + key)
		defer release()

		if resp, ok := o.dedup.Lookup(key); ok {
			observability.RecordEvent("duplicate")
			o.logger.Debug("duplicate event suppressed", "dedup_key", key)
			return resp, nil
		}
	}

	resp, err := o.routeEvent(ctx, event)
	if err != nil {
		observability.RecordEvent("invalid")
		return nil, err
	}

	if o.dedup != nil {
		o.dedup.Remember(key, resp)
	}
	observability.RecordEvent("processed")
	return resp, nil
}

// routeEvent dispatches to the user's active session, starting one when
// none exists.
func (o *Orchestrator) routeEvent(ctx context.Context, event *datatypes.InboundEvent) (*datatypes.TurnResponse, error) {
	sessionID, err := o.FindActive(ctx, event.UserID, event.ChannelID)
	if err != nil {
		return nil, err
	}

	if sessionID == "" {
		started, err := o.Start(ctx, event.UserID, event.ChannelID, event.Text)
		if err != nil {
			return nil, err
		}
		return &datatypes.TurnResponse{
			Type:      datatypes.TurnTypeFollowUp,
			SessionID: started.SessionID,
			Stage:     started.Stage,
			Score:     started.Score,
			Questions: started.Questions,
			StageNote: started.Stage.Description(),
		}, nil
	}

	return o.Process(ctx, sessionID, event.Text)
}

// FindActive returns the ID of the user's most recently active
// non-terminal session in the channel, or "" when none exists.
func (o *Orchestrator) FindActive(ctx context.Context, userID, channelID string) (string, error) {
	ids, err := o.store.IDs(ctx)
	if err != nil {
		return "", fmt.Errorf("listing sessions: %w", err)
	}

	var bestID string
	var bestActivity time.Time
	for _, id := range ids {
		session, err := o.store.Get(ctx, id)
		if err != nil {
			continue // expired or deleted mid-scan
		}
		if session.UserID != userID || session.ChannelID != channelID || session.Terminal() {
			continue
		}
		if session.LastActivityAt.After(bestActivity) {
			bestID = session.ID
			bestActivity = session.LastActivityAt
		}
	}
	return bestID, nil
}

// ===== Turn Pipeline Internals =====

// finalize generates the action plan and completes the session.
func (o *Orchestrator) finalize(ctx context.Context, session *datatypes.DialogueSession, assessment *datatypes.CompletenessAssessment, forced bool) *datatypes.TurnResponse {
	if forced && session.Score < datatypes.PlanThreshold {
		o.logger.Info("question ceiling reached, forcing plan generation",
			"session_id", session.ID,
			"score", session.Score,
			"rounds", session.QuestionRounds,
		)
	}

	session.Stage = datatypes.StagePlanning
	plan := o.planner.Generate(ctx, session, assessment)
	session.Plan = plan
	session.Stage = datatypes.StageCompleted
	session.Append(datatypes.RoleAssistant, plan.Summary, "")

	observability.RecordSession("completed")
	observability.AddActiveSessions(-1)

	return planResponse(session)
}

// askMore runs another question round.
func (o *Orchestrator) askMore(ctx context.Context, session *datatypes.DialogueSession, assessment *datatypes.CompletenessAssessment) *datatypes.TurnResponse {
	if len(assessment.Missing) == 1 {
		session.Stage = datatypes.StageClarifying
	} else {
		session.Stage = datatypes.StageGathering
	}

	questions := o.questions.Generate(ctx, session, assessment, minQuestionsPerRound)
	session.QuestionRounds++
	session.Append(datatypes.RoleAssistant, joinQuestions(questions), "")

	return &datatypes.TurnResponse{
		Type:      datatypes.TurnTypeFollowUp,
		SessionID: session.ID,
		Stage:     session.Stage,
		Score:     session.Score,
		Questions: questions,
		StageNote: session.Stage.Description(),
	}
}

// foldKnowledge appends matching reference material to the transcript so
// later scoring and planning can draw on it. Lookup failures are logged
// and skipped; a knowledge request never consumes a question round.
func (o *Orchestrator) foldKnowledge(ctx context.Context, session *datatypes.DialogueSession, query string) {
	if o.knowledge == nil {
		return
	}
	items, err := o.knowledge.Search(ctx, query, knowledge.DefaultSearchLimit)
	if err != nil {
		o.logger.Warn("knowledge lookup failed",
			"session_id", session.ID,
			"error", err,
		)
		return
	}
	if len(items) == 0 {
		return
	}
	session.Append(datatypes.RoleAssistant, formatReferences(items), "")
}

// archiveLocked closes the session on a termination keyword. Caller holds
// the session lock.
func (o *Orchestrator) archiveLocked(ctx context.Context, session *datatypes.DialogueSession, text string) (*datatypes.TurnResponse, error) {
	session.Append(datatypes.RoleUser, text, datatypes.IntentOpenQuestion)
	session.Stage = datatypes.StageArchived
	if err := o.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("archiving session: %w", err)
	}

	observability.RecordSession("archived")
	observability.AddActiveSessions(-1)
	o.logger.Info("session closed by user", "session_id", session.ID)

	return &datatypes.TurnResponse{
		Type:      datatypes.TurnTypeFollowUp,
		SessionID: session.ID,
		Stage:     session.Stage,
		Score:     session.Score,
		StageNote: session.Stage.Description(),
	}, nil
}

// isTermination reports whether the turn is exactly a termination keyword.
func (o *Orchestrator) isTermination(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range o.config.TerminationKeywords {
		if normalized == kw {
			return true
		}
	}
	return false
}

// planResponse builds the action_plan payload from a completed session.
func planResponse(session *datatypes.DialogueSession) *datatypes.TurnResponse {
	return &datatypes.TurnResponse{
		Type:      datatypes.TurnTypeActionPlan,
		SessionID: session.ID,
		Stage:     session.Stage,
		Score:     session.Score,
		StageNote: session.Stage.Description(),
		Plan:      session.Plan,
	}
}

// joinQuestions renders a question set as a numbered list for the
// transcript.
func joinQuestions(questions []string) string {
	var b strings.Builder
	for i, q := range questions {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, q)
	}
	return b.String()
}

// formatReferences renders knowledge results for the transcript.
func formatReferences(items []datatypes.ReferenceItem) string {
	var b strings.Builder
	b.WriteString("Here is some material that may help:")
	for _, item := range items {
		fmt.Fprintf(&b, "\n- %s: %s", item.Title, item.Content)
		if item.Source != "" {
			fmt.Fprintf(&b, " (%s)", item.Source)
		}
	}
	return b.String()
}
