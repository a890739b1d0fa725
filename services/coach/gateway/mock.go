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
	"sync"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// MockGateway is a scriptable Gateway for testing.
//
// Thread Safety:
//
//	MockGateway is safe for concurrent use.
type MockGateway struct {
	mu sync.RWMutex

	// fallthrough provider answers any capability with no queued script.
	inner Gateway

	// per-capability queued errors, consumed one per call.
	errQueues map[string][]error

	// queued results per capability.
	classifyQueue []*ClassifyResult
	scoreQueue    []*datatypes.CompletenessAssessment
	questionQueue [][]string
	planQueue     []*datatypes.ActionPlan

	// calls records every capability invocation in order.
	calls []GatewayCall

	// delay adds artificial latency to every call.
	delay time.Duration
}

// GatewayCall records one capability invocation.
type GatewayCall struct {
	Capability string
	Utterance  string
	SessionID  string
	Timestamp  time.Time
}

// NewMockGateway creates a mock that answers unscripted calls with the
// deterministic provider.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		inner:     NewDeterministic(),
		errQueues: make(map[string][]error),
	}
}

// Name implements the Gateway interface.
func (m *MockGateway) Name() string { return "mock" }

// WithDelay adds artificial latency.
func (m *MockGateway) WithDelay(d time.Duration) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// QueueError makes the next call to capability fail with err. Use the
// capability names "classify", "score", "questions", "plan" or "*" for all.
func (m *MockGateway) QueueError(capability string, err error) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errQueues[capability] = append(m.errQueues[capability], err)
	return m
}

// QueueClassify queues a classification result.
func (m *MockGateway) QueueClassify(result *ClassifyResult) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifyQueue = append(m.classifyQueue, result)
	return m
}

// QueueScore queues a completeness assessment.
func (m *MockGateway) QueueScore(a *datatypes.CompletenessAssessment) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreQueue = append(m.scoreQueue, a)
	return m
}

// QueueQuestions queues a question batch.
func (m *MockGateway) QueueQuestions(qs []string) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questionQueue = append(m.questionQueue, qs)
	return m
}

// QueuePlan queues an action plan.
func (m *MockGateway) QueuePlan(p *datatypes.ActionPlan) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.planQueue = append(m.planQueue, p)
	return m
}

// CallCount returns the number of calls to the named capability, or all
// calls for "*".
func (m *MockGateway) CallCount(capability string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if capability == "*" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Capability == capability {
			n++
		}
	}
	return n
}

// Calls returns a copy of the recorded calls.
func (m *MockGateway) Calls() []GatewayCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]GatewayCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears queues and recorded calls.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errQueues = make(map[string][]error)
	m.classifyQueue = nil
	m.scoreQueue = nil
	m.questionQueue = nil
	m.planQueue = nil
	m.calls = nil
	m.delay = 0
}

// Verify ensures all queued results were consumed.
func (m *MockGateway) Verify() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	remaining := len(m.classifyQueue) + len(m.scoreQueue) + len(m.questionQueue) + len(m.planQueue)
	if remaining > 0 {
		return fmt.Errorf("mock: %d queued results not consumed", remaining)
	}
	return nil
}

// begin records a call and pops any queued error for the capability.
// Callers must hold no lock.
func (m *MockGateway) begin(ctx context.Context, capability, utterance, sessionID string) error {
	m.mu.Lock()
	m.calls = append(m.calls, GatewayCall{
		Capability: capability,
		Utterance:  utterance,
		SessionID:  sessionID,
		Timestamp:  time.Now(),
	})
	var err error
	if q := m.errQueues[capability]; len(q) > 0 {
		err, m.errQueues[capability] = q[0], q[1:]
	} else if q := m.errQueues["*"]; len(q) > 0 {
		err, m.errQueues["*"] = q[0], q[1:]
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Classify implements the Gateway interface.
func (m *MockGateway) Classify(ctx context.Context, utterance string, history []datatypes.Message) (*ClassifyResult, error) {
	if err := m.begin(ctx, "classify", utterance, ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if len(m.classifyQueue) > 0 {
		result := m.classifyQueue[0]
		m.classifyQueue = m.classifyQueue[1:]
		m.mu.Unlock()
		return result, nil
	}
	m.mu.Unlock()
	return m.inner.Classify(ctx, utterance, history)
}

// ScoreCompleteness implements the Gateway interface.
func (m *MockGateway) ScoreCompleteness(ctx context.Context, req *ScoreRequest) (*datatypes.CompletenessAssessment, error) {
	if err := m.begin(ctx, "score", "", req.Session.ID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if len(m.scoreQueue) > 0 {
		result := m.scoreQueue[0]
		m.scoreQueue = m.scoreQueue[1:]
		m.mu.Unlock()
		return result, nil
	}
	m.mu.Unlock()
	return m.inner.ScoreCompleteness(ctx, req)
}

// GenerateQuestions implements the Gateway interface.
func (m *MockGateway) GenerateQuestions(ctx context.Context, req *QuestionRequest) ([]string, error) {
	if err := m.begin(ctx, "questions", "", req.Session.ID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if len(m.questionQueue) > 0 {
		result := m.questionQueue[0]
		m.questionQueue = m.questionQueue[1:]
		m.mu.Unlock()
		return result, nil
	}
	m.mu.Unlock()
	return m.inner.GenerateQuestions(ctx, req)
}

// GeneratePlan implements the Gateway interface.
func (m *MockGateway) GeneratePlan(ctx context.Context, req *PlanRequest) (*datatypes.ActionPlan, error) {
	if err := m.begin(ctx, "plan", "", req.Session.ID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if len(m.planQueue) > 0 {
		result := m.planQueue[0]
		m.planQueue = m.planQueue[1:]
		m.mu.Unlock()
		return result, nil
	}
	m.mu.Unlock()
	return m.inner.GeneratePlan(ctx, req)
}
