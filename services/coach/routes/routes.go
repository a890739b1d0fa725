// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CoachPilotAI/CoachPilot/services/coach/dialogue"
	"github.com/CoachPilotAI/CoachPilot/services/coach/handlers"
	"github.com/CoachPilotAI/CoachPilot/services/coach/knowledge"
	"github.com/CoachPilotAI/CoachPilot/services/coach/store"
)

// SetupRoutes registers the full HTTP surface of the coach service.
func SetupRoutes(router *gin.Engine, o *dialogue.Orchestrator, searcher knowledge.Searcher, failover *store.Failover) {
	router.GET("/health", handlers.HealthCheck(failover))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/events", handlers.HandleEvent(o))
		v1.GET("/knowledge/search", handlers.SearchKnowledge(searcher))

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.StartSession(o))
			sessions.POST("/:sessionId/turns", handlers.ProcessTurn(o))
			sessions.GET("/:sessionId", handlers.GetSession(o))
			sessions.DELETE("/:sessionId", handlers.TerminateSession(o))
		}
	}
}
