// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/knowledge"
)

// SearchKnowledge handles GET /v1/knowledge/search?q=...&limit=N.
func SearchKnowledge(searcher knowledge.Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := coachTracer.Start(c.Request.Context(), "SearchKnowledge")
		defer span.End()

		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
			return
		}

		limit := knowledge.DefaultSearchLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 25 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 25"})
				return
			}
			limit = parsed
		}

		if searcher == nil {
			c.JSON(http.StatusOK, datatypes.KnowledgeSearchResponse{Query: query})
			return
		}

		results, err := searcher.Search(ctx, query, limit)
		if err != nil {
			span.RecordError(err)
			slog.Error("knowledge search failed", "query", query, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "knowledge search failed"})
			return
		}

		c.JSON(http.StatusOK, datatypes.KnowledgeSearchResponse{
			Query:   query,
			Results: results,
		})
	}
}
