// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CoachPilotAI/CoachPilot/services/coach/dialogue"
	"github.com/CoachPilotAI/CoachPilot/services/coach/gateway"
	"github.com/CoachPilotAI/CoachPilot/services/coach/intent"
	"github.com/CoachPilotAI/CoachPilot/services/coach/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore(time.Hour)
	gw := gateway.NewDeterministic()
	classifier, err := intent.NewClassifier(gw, intent.DefaultConfig())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	o, err := dialogue.NewOrchestrator(st, gw, classifier, nil, nil, dialogue.Config{}, logger)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	router := gin.New()
	// Knowledge searcher and failover are optional at wire time.
	SetupRoutes(router, o, nil, nil)
	return router
}

func TestSetupRoutesRegistersSurface(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/v1/sessions", `{"user_id":"U1","context":"help me sell"}`, http.StatusCreated},
		{http.MethodGet, "/v1/sessions/absent", "", http.StatusNotFound},
		{http.MethodDelete, "/v1/sessions/absent", "", http.StatusNotFound},
		{http.MethodPost, "/v1/sessions/absent/turns", `{"text":"hi"}`, http.StatusNotFound},
		{http.MethodPost, "/v1/events", `{"user_id":"U1","channel_id":"C1","text":"hi there","event_timestamp":"1.0"}`, http.StatusOK},
		{http.MethodGet, "/v1/knowledge/search?q=anything", "", http.StatusOK},
	}
	for _, tt := range tests {
		var body io.Reader
		if tt.body != "" {
			body = strings.NewReader(tt.body)
		}
		req := httptest.NewRequest(tt.method, tt.path, body)
		if tt.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Errorf("%s %s = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.status, rec.Body.String())
		}
	}
}

func TestHealthReportsDegradedStore(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health body = %s, want ok status", rec.Body.String())
	}
}
