// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/spf13/cobra"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	scanner := bufio.NewScanner(os.Stdin)

	initialContext := strings.Join(args, " ")
	if strings.TrimSpace(initialContext) == "" {
		fmt.Print("What do you want coaching on? ")
		if !scanner.Scan() {
			return
		}
		initialContext = scanner.Text()
	}

	start, err := startSession(initialContext)
	if err != nil {
		log.Fatalf("Error starting session: %v", err)
	}

	fmt.Printf("Session %s started (stage: %s)\n", start.SessionID, start.Stage)
	printQuestions(start.Questions)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		turn, err := processTurn(start.SessionID, text)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		if turn.Type == datatypes.TurnTypeActionPlan {
			printPlan(turn.Plan)
			fmt.Printf("\nSession complete (score: %d/100). Good luck!\n", turn.Score)
			return
		}

		if turn.Stage == datatypes.StageArchived {
			fmt.Println("Session closed.")
			return
		}

		fmt.Printf("[%s | score %d/100]\n", turn.StageNote, turn.Score)
		printQuestions(turn.Questions)
	}
}

func runSessionGetCommand(cmd *cobra.Command, args []string) {
	sessionID := args[0]

	var session datatypes.DialogueSession
	if err := doGet(fmt.Sprintf("/v1/sessions/%s", sessionID), &session); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Session:  %s\n", session.ID)
	fmt.Printf("User:     %s\n", session.UserID)
	fmt.Printf("Stage:    %s\n", session.Stage)
	fmt.Printf("Score:    %d/100\n", session.Score)
	fmt.Printf("Activity: %s\n", session.LastActivityAt.Format(time.RFC3339))
	fmt.Println("---")
	for _, msg := range session.Messages {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	}
	if session.Plan != nil {
		printPlan(session.Plan)
	}
}

func runSessionEndCommand(cmd *cobra.Command, args []string) {
	sessionID := args[0]

	req, err := http.NewRequest(http.MethodDelete, serverURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		log.Fatalf("Error reaching coach server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("Server returned status %d: %s", resp.StatusCode, string(body))
	}
	fmt.Printf("Session %s archived.\n", sessionID)
}

func runKnowledgeCommand(cmd *cobra.Command, args []string) {
	query := strings.Join(args, " ")

	var result datatypes.KnowledgeSearchResponse
	path := fmt.Sprintf("/v1/knowledge/search?q=%s", strings.ReplaceAll(query, " ", "+"))
	if err := doGet(path, &result); err != nil {
		log.Fatalf("Error: %v", err)
	}

	if len(result.Results) == 0 {
		fmt.Println("No matching material found.")
		return
	}
	for i, item := range result.Results {
		fmt.Printf("%d. %s\n   %s\n", i+1, item.Title, item.Content)
		if item.Source != "" {
			fmt.Printf("   (source: %s)\n", item.Source)
		}
	}
}

// ===== HTTP Helpers =====

func httpClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}

func startSession(initialContext string) (*datatypes.StartSessionResponse, error) {
	payload, err := json.Marshal(datatypes.StartSessionRequest{
		UserID:         userID,
		ChannelID:      channelID,
		InitialContext: initialContext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	resp, err := httpClient().Post(serverURL+"/v1/sessions", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to reach coach server at %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("coach server returned status %d: %s", resp.StatusCode, string(body))
	}

	var start datatypes.StartSessionResponse
	if err := json.Unmarshal(body, &start); err != nil {
		return nil, fmt.Errorf("failed to parse start response: %w", err)
	}
	return &start, nil
}

func processTurn(sessionID, text string) (*datatypes.TurnResponse, error) {
	payload, err := json.Marshal(datatypes.ProcessTurnRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/turns", serverURL, sessionID)
	resp, err := httpClient().Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to reach coach server: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusGone {
		return &datatypes.TurnResponse{SessionID: sessionID, Stage: datatypes.StageArchived}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coach server returned status %d: %s", resp.StatusCode, string(body))
	}

	var turn datatypes.TurnResponse
	if err := json.Unmarshal(body, &turn); err != nil {
		return nil, fmt.Errorf("failed to parse turn response: %w", err)
	}
	return &turn, nil
}

func doGet(path string, out any) error {
	resp, err := httpClient().Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("failed to reach coach server: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coach server returned status %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

// ===== Rendering =====

func printQuestions(questions []string) {
	if len(questions) == 0 {
		return
	}
	fmt.Println()
	for i, q := range questions {
		fmt.Printf("%d. %s\n", i+1, q)
	}
}

func printPlan(plan *datatypes.ActionPlan) {
	if plan == nil {
		return
	}
	fmt.Println("\n=== Your Action Plan ===")
	if plan.Summary != "" {
		fmt.Println(plan.Summary)
	}
	for i, item := range plan.Items {
		fmt.Printf("\n%d. %s [%s]\n", i+1, item.Title, item.Priority)
		if item.Description != "" {
			fmt.Printf("   %s\n", item.Description)
		}
		fmt.Printf("   Due: %s\n", item.DueDate.Format("2006-01-02"))
		fmt.Printf("   Success looks like: %s\n", item.SuccessCriteria)
	}
	if plan.Metrics.ReviewFrequency != "" {
		fmt.Printf("\nReview cadence: %s\n", plan.Metrics.ReviewFrequency)
	}
	if plan.Fallback {
		fmt.Println("\n(Generated in degraded mode; a fuller plan needs another session.)")
	}
}
