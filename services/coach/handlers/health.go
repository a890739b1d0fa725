// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CoachPilotAI/CoachPilot/services/coach/store"
)

// HealthCheck handles GET /health. A degraded session store reports
// status "degraded" but still returns 200 so orchestration keeps the
// instance routable.
func HealthCheck(failover *store.Failover) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		if failover != nil && failover.Degraded() {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}
