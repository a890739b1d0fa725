// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"
)

// =============================================================================
// Request Validation Tests
// =============================================================================

func TestStartSessionRequest_Validate_Success(t *testing.T) {
	req := &StartSessionRequest{
		UserID:         "U123",
		ChannelID:      "C456",
		InitialContext: "new customer acquisition",
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestStartSessionRequest_Validate_MissingContext(t *testing.T) {
	req := &StartSessionRequest{UserID: "U123"}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing context, got nil")
	}
}

func TestStartSessionRequest_Validate_OversizedContext(t *testing.T) {
	req := &StartSessionRequest{
		UserID:         "U123",
		InitialContext: strings.Repeat("a", MaxUtteranceBytes+1),
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for oversized context, got nil")
	}
}

func TestProcessTurnRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "valid", text: "I tried cold calling last week", wantErr: false},
		{name: "empty", text: "", wantErr: true},
		{name: "at limit", text: strings.Repeat("b", MaxUtteranceBytes), wantErr: false},
		{name: "over limit", text: strings.Repeat("b", MaxUtteranceBytes+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ProcessTurnRequest{Text: tt.text}
			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// Inbound Event Tests
// =============================================================================

func TestInboundEvent_DedupKey(t *testing.T) {
	e := &InboundEvent{
		UserID:    "U1",
		ChannelID: "C1",
		Text:      "hello",
		EventTS:   "1735817400.000100",
	}

	want := "1735817400.000100_U1_C1"
	if got := e.DedupKey(); got != want {
		t.Errorf("DedupKey() = %q, want %q", got, want)
	}
}

func TestInboundEvent_FromSelf(t *testing.T) {
	tests := []struct {
		name  string
		event InboundEvent
		bot   string
		want  bool
	}{
		{name: "plain user", event: InboundEvent{UserID: "U1"}, bot: "UBOT", want: false},
		{name: "bot id set", event: InboundEvent{UserID: "U1", BotID: "B99"}, bot: "UBOT", want: true},
		{name: "bot subtype", event: InboundEvent{UserID: "U1", Subtype: "bot_message"}, bot: "UBOT", want: true},
		{name: "own user id", event: InboundEvent{UserID: "UBOT"}, bot: "UBOT", want: true},
		{name: "no bot configured", event: InboundEvent{UserID: "U1"}, bot: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.FromSelf(tt.bot); got != tt.want {
				t.Errorf("FromSelf(%q) = %v, want %v", tt.bot, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Session Model Tests
// =============================================================================

func TestNewDialogueSession_Defaults(t *testing.T) {
	s := NewDialogueSession("U1", "C1")

	if s.ID == "" {
		t.Error("expected generated session ID")
	}
	if s.Stage != StageInitial {
		t.Errorf("expected stage %q, got %q", StageInitial, s.Stage)
	}
	if s.Score != 0 {
		t.Errorf("expected score 0, got %d", s.Score)
	}
	if len(s.Messages) != 0 {
		t.Errorf("expected empty history, got %d messages", len(s.Messages))
	}
}

func TestDialogueSession_Append_AssignsSequence(t *testing.T) {
	s := NewDialogueSession("U1", "")

	first := s.Append(RoleUser, "I want help with cold calls", "")
	second := s.Append(RoleAssistant, "Tell me more", "")

	if first.Seq != 0 || second.Seq != 1 {
		t.Errorf("expected sequence 0,1 got %d,%d", first.Seq, second.Seq)
	}
	if !s.LastActivityAt.Equal(second.Timestamp) {
		t.Error("expected LastActivityAt to track the latest append")
	}
}

func TestDialogueSession_Clone_Isolation(t *testing.T) {
	s := NewDialogueSession("U1", "")
	s.Append(RoleUser, "original", "")
	s.Plan = NewActionPlan(s.ID)
	s.Plan.Items = []ActionItem{{Title: "call ten prospects"}}

	cp := s.Clone()
	cp.Messages[0].Content = "mutated"
	cp.Plan.Items[0].Title = "mutated"

	if s.Messages[0].Content != "original" {
		t.Error("clone shares message backing array with original")
	}
	if s.Plan.Items[0].Title != "call ten prospects" {
		t.Error("clone shares plan items with original")
	}
}

func TestStage_Terminal(t *testing.T) {
	tests := []struct {
		stage Stage
		want  bool
	}{
		{StageInitial, false},
		{StageGathering, false},
		{StageClarifying, false},
		{StagePlanning, false},
		{StageCompleted, true},
		{StageArchived, true},
	}

	for _, tt := range tests {
		if got := tt.stage.Terminal(); got != tt.want {
			t.Errorf("Stage(%q).Terminal() = %v, want %v", tt.stage, got, tt.want)
		}
	}
}
