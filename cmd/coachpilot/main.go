// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command coachpilot is the CLI for the CoachPilot coaching service.
//
// It talks to a running coach server over HTTP for session management and
// interactive coaching, and offers a fully offline practice mode that runs
// the dialogue engine in-process with the deterministic backend.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	userID    string
	channelID string

	rootCmd = &cobra.Command{
		Use:   "coachpilot",
		Short: "A cli for the CoachPilot sales coaching service",
		Long: `CoachPilot guides sales reps through a structured coaching dialogue
and produces a concrete action plan once enough context is gathered.`,
	}

	chatCmd = &cobra.Command{
		Use:   "chat [initial context...]",
		Short: "Start an interactive coaching session against the coach server",
		Run:   runChatCommand,
	}

	localCmd = &cobra.Command{
		Use:   "local [initial context...]",
		Short: "Run an offline coaching session with the built-in deterministic coach",
		Run:   runLocalCommand,
	}

	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage coaching sessions",
	}
	sessionGetCmd = &cobra.Command{
		Use:   "get [session_id]",
		Short: "Show a session transcript and its current stage",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionGetCommand,
	}
	sessionEndCmd = &cobra.Command{
		Use:   "end [session_id]",
		Short: "Archive a session",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionEndCommand,
	}

	knowledgeCmd = &cobra.Command{
		Use:   "knowledge [query...]",
		Short: "Search the coaching knowledge base",
		Args:  cobra.MinimumNArgs(1),
		Run:   runKnowledgeCommand,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "Coach server base URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "cli-user", "User ID for the session")
	rootCmd.PersistentFlags().StringVar(&channelID, "channel", "cli", "Channel ID for the session")

	sessionCmd.AddCommand(sessionGetCmd, sessionEndCmd)
	rootCmd.AddCommand(chatCmd, localCmd, sessionCmd, knowledgeCmd)
}

func defaultServerURL() string {
	if v := os.Getenv("COACH_SERVER_URL"); v != "" {
		return v
	}
	return "http://localhost:12310"
}
