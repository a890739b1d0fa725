// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the coach service.
//
// Handlers stay thin: bind, validate, delegate to the dialogue
// orchestrator, and map its typed failures to status codes.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/dialogue"
)

var coachTracer = otel.Tracer("coachpilot.coach.handlers")

// StartSession handles POST /v1/sessions.
func StartSession(o *dialogue.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := coachTracer.Start(c.Request.Context(), "StartSession")
		defer span.End()

		var req datatypes.StartSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := o.Start(ctx, req.UserID, req.ChannelID, req.InitialContext)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, dialogue.ErrInvalidContext) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			span.SetStatus(codes.Error, "start failed")
			slog.Error("session start failed", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
			return
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// ProcessTurn handles POST /v1/sessions/:sessionId/turns.
func ProcessTurn(o *dialogue.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := coachTracer.Start(c.Request.Context(), "ProcessTurn")
		defer span.End()
		sessionID := c.Param("sessionId")

		var req datatypes.ProcessTurnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := o.Process(ctx, sessionID, req.Text)
		if err != nil {
			span.RecordError(err)
			switch {
			case errors.Is(err, dialogue.ErrSessionNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			case errors.Is(err, dialogue.ErrSessionClosed):
				c.JSON(http.StatusGone, gin.H{"error": "session is closed"})
			default:
				span.SetStatus(codes.Error, "turn failed")
				slog.Error("turn processing failed", "session_id", sessionID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process turn"})
			}
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// GetSession handles GET /v1/sessions/:sessionId.
func GetSession(o *dialogue.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := coachTracer.Start(c.Request.Context(), "GetSession")
		defer span.End()
		sessionID := c.Param("sessionId")

		session, err := o.Get(ctx, sessionID)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, dialogue.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("session lookup failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}

		c.JSON(http.StatusOK, session)
	}
}

// TerminateSession handles DELETE /v1/sessions/:sessionId.
func TerminateSession(o *dialogue.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := coachTracer.Start(c.Request.Context(), "TerminateSession")
		defer span.End()
		sessionID := c.Param("sessionId")

		if err := o.Terminate(ctx, sessionID); err != nil {
			span.RecordError(err)
			if errors.Is(err, dialogue.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("session termination failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to terminate session"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success", "archived_session_id": sessionID})
	}
}
