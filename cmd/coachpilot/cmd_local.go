// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/dialogue"
	"github.com/CoachPilotAI/CoachPilot/services/coach/gateway"
	"github.com/CoachPilotAI/CoachPilot/services/coach/intent"
	"github.com/CoachPilotAI/CoachPilot/services/coach/knowledge"
	"github.com/CoachPilotAI/CoachPilot/services/coach/store"
)

// localSeed is the knowledge material shipped with the offline practice
// mode. The server loads its seed from a YAML file instead.
var localSeed = []datatypes.ReferenceItem{
	{
		Title:   "Cold call opening script",
		Content: "Open with the prospect's problem, not your product. Reference something specific about their business in the first fifteen seconds.",
		Source:  "playbook",
	},
	{
		Title:   "Objection handling checklist",
		Content: "Acknowledge, clarify, respond, confirm. Never argue with the objection; ask what is behind it.",
		Source:  "playbook",
	},
	{
		Title:   "Discovery question bank",
		Content: "Ask about current process, cost of the problem, decision criteria, and timeline before discussing price.",
		Source:  "playbook",
	},
}

func runLocalCommand(cmd *cobra.Command, args []string) {
	// The CLI's own slog output would interleave with the prompt.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.NewMemoryStore(24 * time.Hour)
	defer st.Close()

	gw := gateway.NewDeterministic()
	classifier, err := intent.NewClassifier(gw, intent.DefaultConfig())
	if err != nil {
		log.Fatalf("Error building classifier: %v", err)
	}

	o, err := dialogue.NewOrchestrator(st, gw, classifier, knowledge.NewMemory(localSeed), nil, dialogue.DefaultConfig(), logger)
	if err != nil {
		log.Fatalf("Error building coach: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)

	initialContext := strings.Join(args, " ")
	if strings.TrimSpace(initialContext) == "" {
		fmt.Print("What do you want coaching on? ")
		if !scanner.Scan() {
			return
		}
		initialContext = scanner.Text()
	}

	ctx := context.Background()
	start, err := o.Start(ctx, userID, channelID, initialContext)
	if err != nil {
		log.Fatalf("Error starting session: %v", err)
	}

	fmt.Printf("Offline session %s started (stage: %s)\n", start.SessionID, start.Stage)
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

		turn, err := o.Process(ctx, start.SessionID, text)
		if errors.Is(err, dialogue.ErrSessionClosed) {
			fmt.Println("Session closed.")
			return
		}
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
