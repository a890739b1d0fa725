// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

const testSeed = `entries:
  - title: Cold call opening script
    content: "Open with the prospect's likely pain, not your product. Thirty seconds maximum."
    source: playbook/cold-calls.md
    keywords: [cold call, opening, script]
  - title: Follow-up email template
    content: "Subject line references the last conversation. One ask per email."
    source: playbook/email.md
    keywords: [email, follow-up, template]
  - title: Objection handling basics
    content: "Acknowledge, clarify, respond. Never argue with the objection."
    source: playbook/objections.md
    keywords: [objection, pricing]
`

func writeSeed(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "knowledge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestMemory_SearchRanksByRelevance(t *testing.T) {
	path := writeSeed(t, t.TempDir(), testSeed)
	m, err := OpenMemory(path, nil)
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer m.Close()

	results, err := m.Search(context.Background(), "cold call script", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Title != "Cold call opening script" {
		t.Errorf("top result = %q, want the cold call entry", results[0].Title)
	}
	if results[0].Score <= 0 {
		t.Error("expected a positive relevance score")
	}
}

func TestMemory_SearchNoMatchIsEmptyNotError(t *testing.T) {
	path := writeSeed(t, t.TempDir(), testSeed)
	m, err := OpenMemory(path, nil)
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer m.Close()

	results, err := m.Search(context.Background(), "quarterly kubernetes forecast", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestMemory_SearchRespectsLimit(t *testing.T) {
	path := writeSeed(t, t.TempDir(), testSeed)
	m, err := OpenMemory(path, nil)
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer m.Close()

	results, err := m.Search(context.Background(), "call email objection script template", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) > 1 {
		t.Errorf("expected at most 1 result, got %d", len(results))
	}
}

func TestMemory_ReloadOnSeedChange(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, testSeed)
	m, err := OpenMemory(path, nil)
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer m.Close()

	updated := testSeed + `  - title: Discovery question checklist
    content: "Ask about current process before pitching anything."
    source: playbook/discovery.md
    keywords: [discovery, questions]
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("rewrite seed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		results, err := m.Search(context.Background(), "discovery questions", 3)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) > 0 && results[0].Title == "Discovery question checklist" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("seed change was not picked up by the watcher")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestMemory_OversizedSeedRejected(t *testing.T) {
	dir := t.TempDir()
	big := testSeed + "# " + strings.Repeat("x", MaxSeedFileSize) + "\n"
	path := writeSeed(t, dir, big)

	if _, err := OpenMemory(path, nil); err == nil {
		t.Error("expected oversized seed file to be rejected")
	}
}

func TestNewMemory_FromItems(t *testing.T) {
	m := NewMemory([]datatypes.ReferenceItem{
		{Title: "Pricing one-pager", Content: "Lead with value, anchor high.", Source: "s1"},
	})

	results, err := m.Search(context.Background(), "pricing", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}
