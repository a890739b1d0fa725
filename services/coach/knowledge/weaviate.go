// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// Weaviate-Backed Knowledge Base
// =============================================================================

// knowledgeClass is the Weaviate class holding coaching reference material.
const knowledgeClass = "CoachingKnowledge"

// Chunking parameters for document ingestion.
const (
	chunkSize    = 1000
	chunkOverlap = 150
)

// Weaviate is the Searcher backed by a Weaviate instance, ranked with BM25.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying client is stateless per call.
type Weaviate struct {
	client   *weaviate.Client
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

// NewWeaviate wraps an existing client. Call EnsureSchema once at boot.
func NewWeaviate(client *weaviate.Client, logger *slog.Logger) *Weaviate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Weaviate{
		client: client,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}
}

// knowledgeSchema returns the class definition. Vectorizer is none: search
// is BM25 over the inverted index, no embedding model required.
func knowledgeSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       knowledgeClass,
		Description: "Sales coaching reference material: scripts, templates, playbook excerpts.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "title",
				DataType:     []string{"text"},
				Description:  "Short human-readable title of the material.",
				Tokenization: "word",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The material itself, one chunk per object.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Origin document path or identifier.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Unix ms timestamp of ingestion.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates the knowledge class if it does not exist.
func (w *Weaviate) EnsureSchema(ctx context.Context) error {
	class := knowledgeSchema()
	_, err := w.client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		w.logger.Info("knowledge schema already exists", "class", class.Class)
		return nil
	}

	w.logger.Info("knowledge schema not found, creating it", "class", class.Class)
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create schema for class %s: %w", class.Class, err)
	}
	return nil
}

// Search implements the Searcher interface using BM25 ranking.
func (w *Weaviate) Search(ctx context.Context, query string, limit int) ([]datatypes.ReferenceItem, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	bm25 := w.client.GraphQL().Bm25ArgBuilder().
		WithQuery(query).
		WithProperties("title", "content")

	result, err := w.client.GraphQL().Get().
		WithClassName(knowledgeClass).
		WithBM25(bm25).
		WithLimit(limit).
		WithFields(
			graphql.Field{Name: "title"},
			graphql.Field{Name: "content"},
			graphql.Field{Name: "source"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}

	// Marshal to JSON and unmarshal into a typed struct for safety.
	jsonBytes, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal knowledge response: %w", err)
	}
	var typed struct {
		Get struct {
			CoachingKnowledge []struct {
				Title      string `json:"title"`
				Content    string `json:"content"`
				Source     string `json:"source"`
				Additional struct {
					Score string `json:"score"`
				} `json:"_additional"`
			} `json:"CoachingKnowledge"`
		} `json:"Get"`
	}
	if err := json.Unmarshal(jsonBytes, &typed); err != nil {
		return nil, fmt.Errorf("unmarshal knowledge response: %w", err)
	}

	items := make([]datatypes.ReferenceItem, 0, len(typed.Get.CoachingKnowledge))
	for _, hit := range typed.Get.CoachingKnowledge {
		score, _ := strconv.ParseFloat(hit.Additional.Score, 64)
		items = append(items, datatypes.ReferenceItem{
			Title:   hit.Title,
			Content: hit.Content,
			Source:  hit.Source,
			Score:   score,
		})
	}
	return items, nil
}

// Ingest chunks a document and stores each chunk as a knowledge object.
func (w *Weaviate) Ingest(ctx context.Context, title, content, source string) (int, error) {
	chunks, err := w.splitter.SplitText(content)
	if err != nil {
		return 0, fmt.Errorf("split document %s: %w", source, err)
	}

	now := time.Now().UnixMilli()
	batcher := w.client.Batch().ObjectsBatcher()
	for _, chunk := range chunks {
		batcher = batcher.WithObjects(&models.Object{
			Class: knowledgeClass,
			Properties: map[string]interface{}{
				"title":       title,
				"content":     chunk,
				"source":      source,
				"ingested_at": now,
			},
		})
	}

	if _, err := batcher.Do(ctx); err != nil {
		return 0, fmt.Errorf("ingest document %s: %w", source, err)
	}
	w.logger.Info("knowledge document ingested",
		"source", source,
		"chunks", len(chunks),
	)
	return len(chunks), nil
}
