// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// MaxSeedFileSize caps the YAML seed file read. Files above this are
// rejected rather than truncated.
const MaxSeedFileSize = 1 * 1024 * 1024 // 1MB

// seedFile is the YAML shape of the knowledge seed.
type seedFile struct {
	Entries []seedEntry `yaml:"entries"`
}

// seedEntry is one knowledge base document in the seed file.
type seedEntry struct {
	Title    string   `yaml:"title"`
	Content  string   `yaml:"content"`
	Source   string   `yaml:"source"`
	Keywords []string `yaml:"keywords"`
}

// Memory is the YAML-seeded in-memory Searcher.
//
// # Description
//
// Entries are ranked by term overlap between the query and each entry's
// keywords, title and content. When constructed with a seed path, a
// filesystem watcher reloads the file on change, so the knowledge base can
// be edited without restarting the service.
//
// # Thread Safety
//
// Safe for concurrent use; reloads swap the entry slice under the write
// lock.
type Memory struct {
	mu      sync.RWMutex
	entries []seedEntry
	path    string

	watcher *fsnotify.Watcher
	doneCh  chan struct{}
	logger  *slog.Logger
}

// NewMemory creates a searcher from the given entries, for tests and the
// built-in default seed.
func NewMemory(entries []datatypes.ReferenceItem) *Memory {
	seeds := make([]seedEntry, 0, len(entries))
	for _, e := range entries {
		seeds = append(seeds, seedEntry{Title: e.Title, Content: e.Content, Source: e.Source})
	}
	return &Memory{entries: seeds, logger: slog.Default()}
}

// OpenMemory loads the seed file at path and starts watching it for
// changes. Call Close to stop the watcher.
func OpenMemory(path string, logger *slog.Logger) (*Memory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memory{path: path, logger: logger}
	if err := m.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create seed watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which would
	// orphan a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch seed directory: %w", err)
	}
	m.watcher = watcher
	m.doneCh = make(chan struct{})
	go m.watch()

	return m, nil
}

// reload reads and parses the seed file.
func (m *Memory) reload() error {
	info, err := os.Stat(m.path)
	if err != nil {
		return fmt.Errorf("stat seed file %s: %w", m.path, err)
	}
	if info.Size() > MaxSeedFileSize {
		return fmt.Errorf("seed file %s exceeds %d bytes", m.path, MaxSeedFileSize)
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read seed file %s: %w", m.path, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file %s: %w", m.path, err)
	}

	m.mu.Lock()
	m.entries = seed.Entries
	m.mu.Unlock()

	m.logger.Info("knowledge seed loaded", "path", m.path, "entries", len(seed.Entries))
	return nil
}

// watch reloads the seed on writes to it.
func (m *Memory) watch() {
	base := filepath.Base(m.path)
	for {
		select {
		case <-m.doneCh:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := m.reload(); err != nil {
				m.logger.Warn("knowledge seed reload failed, keeping previous entries",
					"path", m.path,
					"error", err,
				)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("knowledge seed watcher error", "error", err)
		}
	}
}

// Close stops the watcher, if any.
func (m *Memory) Close() error {
	if m.watcher == nil {
		return nil
	}
	close(m.doneCh)
	return m.watcher.Close()
}

// Search implements the Searcher interface.
func (m *Memory) Search(ctx context.Context, query string, limit int) ([]datatypes.ReferenceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	entries := m.entries
	m.mu.RUnlock()

	type scored struct {
		item  datatypes.ReferenceItem
		score float64
	}
	var matches []scored
	for _, e := range entries {
		score := scoreEntry(e, terms)
		if score <= 0 {
			continue
		}
		matches = append(matches, scored{
			item: datatypes.ReferenceItem{
				Title:   e.Title,
				Content: e.Content,
				Source:  e.Source,
				Score:   score,
			},
			score: score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	items := make([]datatypes.ReferenceItem, 0, len(matches))
	for _, s := range matches {
		items = append(items, s.item)
	}
	return items, nil
}

// queryTerms splits a query into lowercase terms, dropping single-letter
// noise.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'")
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}

// scoreEntry ranks an entry against the query terms. Keyword matches weigh
// most, then title, then content.
func scoreEntry(e seedEntry, terms []string) float64 {
	title := strings.ToLower(e.Title)
	content := strings.ToLower(e.Content)

	var score float64
	for _, term := range terms {
		for _, kw := range e.Keywords {
			if strings.Contains(strings.ToLower(kw), term) {
				score += 3
				break
			}
		}
		if strings.Contains(title, term) {
			score += 2
		}
		if strings.Contains(content, term) {
			score++
		}
	}
	return score
}
