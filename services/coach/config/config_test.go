// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coach.yaml")
	body := `
server:
  port: "9000"
store:
  in_memory: true
  session_ttl: 1h
gateway:
  backend: openai
  model: gpt-4o
dialogue:
  max_question_rounds: 6
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("port = %q, want 9000", cfg.Server.Port)
	}
	if !cfg.Store.InMemory {
		t.Error("in_memory override lost")
	}
	if cfg.Store.SessionTTL.Std() != time.Hour {
		t.Errorf("session_ttl = %v, want 1h", cfg.Store.SessionTTL)
	}
	if cfg.Gateway.Backend != "openai" || cfg.Gateway.Model != "gpt-4o" {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Dialogue.MaxQuestionRounds != 6 {
		t.Errorf("max_question_rounds = %d, want 6", cfg.Dialogue.MaxQuestionRounds)
	}
	// Untouched sections keep defaults.
	if cfg.Dedup.Window.Std() != 5*time.Minute {
		t.Errorf("dedup window = %v, want default 5m", cfg.Dedup.Window)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coach.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("COACH_PORT", "\"9100\"") // quoted, as container runtimes sometimes pass it
	t.Setenv("COACH_SESSION_TTL", "2h")
	t.Setenv("COACH_GATEWAY_BACKEND", "openai")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Errorf("port = %q, want env override 9100", cfg.Server.Port)
	}
	if cfg.Store.SessionTTL.Std() != 2*time.Hour {
		t.Errorf("session_ttl = %v, want 2h", cfg.Store.SessionTTL)
	}
	if cfg.Gateway.Backend != "openai" {
		t.Errorf("backend = %q, want openai", cfg.Gateway.Backend)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [not a map"},
		{"bad backend", "gateway:\n  backend: carrier_pigeon\n"},
		{"bad port", "server:\n  port: \"not-a-port\"\n"},
		{"zero ttl", "store:\n  session_ttl: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load accepted invalid config")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load accepted a missing explicit config path")
	}
}
