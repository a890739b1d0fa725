// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"testing"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/gateway"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = time.Second
	return cfg
}

func TestClassifier_ExperienceMarkersWinOverRequestKeywords(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
	}{
		{name: "for example followed by narration", utterance: "For example, I tried sending a template email to 20 prospects"},
		{name: "plain narration", utterance: "I did a round of cold calls with a new script last week"},
		{name: "i've been", utterance: "I've been asking every prospect for an example of their workflow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := gateway.NewMockGateway()
			c, err := NewClassifier(mock, testConfig())
			if err != nil {
				t.Fatalf("NewClassifier() error = %v", err)
			}

			result, err := c.Classify(context.Background(), tt.utterance, nil)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if result.Label != datatypes.IntentExperienceSharing {
				t.Errorf("Classify(%q) = %q, want %q", tt.utterance, result.Label, datatypes.IntentExperienceSharing)
			}
			if result.Label == datatypes.IntentKnowledgeRequest {
				t.Error("experience narration must never be labeled a knowledge request")
			}
			if got := mock.CallCount("classify"); got != 0 {
				t.Errorf("expected no gateway call for decisive lexical verdict, got %d", got)
			}
		})
	}
}

func TestClassifier_NoMarkerDefaultsLocally(t *testing.T) {
	mock := gateway.NewMockGateway()
	c, _ := NewClassifier(mock, testConfig())

	result, err := c.Classify(context.Background(), "Mostly mid-market accounts in logistics", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Label != datatypes.IntentOpenQuestion {
		t.Errorf("got %q, want %q", result.Label, datatypes.IntentOpenQuestion)
	}
	if got := mock.CallCount("classify"); got != 0 {
		t.Errorf("expected no gateway call, got %d", got)
	}
}

func TestClassifier_RequestMarkerConfirmedByGateway(t *testing.T) {
	mock := gateway.NewMockGateway().QueueClassify(&gateway.ClassifyResult{
		Label:      datatypes.IntentKnowledgeRequest,
		Confidence: 0.92,
	})
	c, _ := NewClassifier(mock, testConfig())

	result, err := c.Classify(context.Background(), "Can you give me an example script?", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Label != datatypes.IntentKnowledgeRequest {
		t.Errorf("got %q, want %q", result.Label, datatypes.IntentKnowledgeRequest)
	}
	if result.Source != "gateway" {
		t.Errorf("source = %q, want gateway", result.Source)
	}
	if got := mock.CallCount("classify"); got != 1 {
		t.Errorf("expected 1 confirmation call, got %d", got)
	}
}

func TestClassifier_LowConfidenceDefaultsToOpenQuestion(t *testing.T) {
	mock := gateway.NewMockGateway().QueueClassify(&gateway.ClassifyResult{
		Label:      datatypes.IntentKnowledgeRequest,
		Confidence: 0.55,
	})
	c, _ := NewClassifier(mock, testConfig())

	result, err := c.Classify(context.Background(), "send me whatever you think helps", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Label != datatypes.IntentOpenQuestion {
		t.Errorf("got %q, want %q below threshold", result.Label, datatypes.IntentOpenQuestion)
	}
	if !result.LowConfidence {
		t.Error("expected LowConfidence to be set")
	}
}

func TestClassifier_GatewayFailureLeavesRequestUnconfirmed(t *testing.T) {
	mock := gateway.NewMockGateway().QueueError("classify", gateway.ErrUnavailable)
	c, _ := NewClassifier(mock, testConfig())

	result, err := c.Classify(context.Background(), "do you have a template for follow-ups?", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Label != datatypes.IntentOpenQuestion {
		t.Errorf("got %q, want %q when the candidate was never confirmed", result.Label, datatypes.IntentOpenQuestion)
	}
	if result.Source != "fallback" {
		t.Errorf("source = %q, want fallback", result.Source)
	}
	if !result.LowConfidence {
		t.Error("expected LowConfidence on an unconfirmed candidate")
	}
	if result.Confidence >= 0.7 {
		t.Errorf("confidence = %v, must stay below the acceptance threshold", result.Confidence)
	}
}

func TestClassifier_CacheServesRepeatConfirmations(t *testing.T) {
	mock := gateway.NewMockGateway().QueueClassify(&gateway.ClassifyResult{
		Label:      datatypes.IntentKnowledgeRequest,
		Confidence: 0.9,
	})
	c, _ := NewClassifier(mock, testConfig())
	ctx := context.Background()

	first, err := c.Classify(ctx, "Show me an example cold email", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	second, err := c.Classify(ctx, "show me an example cold email  ", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if !second.Cached {
		t.Error("expected second classification to come from cache")
	}
	if second.Label != first.Label {
		t.Errorf("cached label %q differs from original %q", second.Label, first.Label)
	}
	if got := mock.CallCount("classify"); got != 1 {
		t.Errorf("expected 1 gateway call, got %d", got)
	}
}

func TestClassifier_EmptyUtterance(t *testing.T) {
	c, _ := NewClassifier(gateway.NewMockGateway(), testConfig())

	result, err := c.Classify(context.Background(), "   ", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Label != datatypes.IntentOpenQuestion {
		t.Errorf("got %q, want %q for empty utterance", result.Label, datatypes.IntentOpenQuestion)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "threshold above one", mutate: func(c *Config) { c.ConfidenceThreshold = 1.5 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "cache ttl without size", mutate: func(c *Config) { c.CacheMaxSize = 0 }, wantErr: true},
		{name: "negative concurrency", mutate: func(c *Config) { c.MaxConcurrent = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
