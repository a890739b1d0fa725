// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/dialogue"
)

// HandleEvent handles POST /v1/events, the inbound channel webhook.
//
// Self-echoed bot messages are acknowledged without processing so the
// channel does not retry them. Duplicate deliveries inside the dedup
// window receive the originally computed response.
func HandleEvent(o *dialogue.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := coachTracer.Start(c.Request.Context(), "HandleEvent")
		defer span.End()

		var event datatypes.InboundEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event body"})
			return
		}
		if err := event.Validate(); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := o.HandleEvent(ctx, &event)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, dialogue.ErrInvalidContext) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("event processing failed",
				"user_id", event.UserID,
				"channel_id", event.ChannelID,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
			return
		}
		if resp == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
