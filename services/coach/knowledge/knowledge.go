// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package knowledge provides the sales knowledge base consulted when a rep
// explicitly asks for material (templates, sample scripts, examples).
//
// Two implementations exist: a Weaviate-backed searcher with BM25 ranking
// for deployments with a vector database, and a YAML-seeded in-memory
// searcher with hot reload for local development.
package knowledge

import (
	"context"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// Searcher looks up reference material for an explicit knowledge request.
//
// # Description
//
// An empty result slice is a valid answer, not an error; the dialogue layer
// tells the user nothing was found and moves on. Implementations must be
// safe for concurrent use.
type Searcher interface {
	// Search returns up to limit reference items ranked by relevance.
	Search(ctx context.Context, query string, limit int) ([]datatypes.ReferenceItem, error)
}

// DefaultSearchLimit bounds results when the caller passes no limit.
const DefaultSearchLimit = 3
