// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"fmt"
	"strings"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// Lexical Pre-Filter
// =============================================================================

// experienceMarkers signal first-person narration of something the user did.
// Evaluated before request markers: narrative framing beats request-keyword
// overlap, so "for example, I tried..." never reaches the request check.
var experienceMarkers = []string{
	"for example, i", "for example i",
	"for instance, i", "for instance i",
	"in practice i", "in my experience",
	"what i did", "what i tried",
	"i tried", "i did", "i attempted", "i tested",
	"i have been", "i've been",
	"last time i", "last week i", "yesterday i",
	"when i called", "when i pitched",
	"my approach was", "my approach has been",
}

// requestMarkers signal an explicit ask for material. A match here is only a
// candidate: the gateway confirms or rejects it.
var requestMarkers = []string{
	"give me an example", "show me an example", "share an example",
	"give me a sample", "show me a sample",
	"send me", "share the", "send the",
	"do you have a template", "template for",
	"show me the script", "example script", "sample script",
	"can i see", "what does a good",
}

// lexicalVerdict is the pre-filter outcome for one utterance.
type lexicalVerdict struct {
	// label is the pre-filter's suggestion.
	label datatypes.IntentLabel

	// decisive means the verdict is final and needs no gateway
	// confirmation.
	decisive bool

	// rationale names the matched marker.
	rationale string
}

// prefilter applies the marker rules to a lowercased utterance.
func prefilter(utterance string) lexicalVerdict {
	lower := strings.ToLower(utterance)

	for _, marker := range experienceMarkers {
		if strings.Contains(lower, marker) {
			return lexicalVerdict{
				label:     datatypes.IntentExperienceSharing,
				decisive:  true,
				rationale: fmt.Sprintf("narrative marker %q", marker),
			}
		}
	}

	for _, marker := range requestMarkers {
		if strings.Contains(lower, marker) {
			return lexicalVerdict{
				label:     datatypes.IntentKnowledgeRequest,
				decisive:  false,
				rationale: fmt.Sprintf("request marker %q", marker),
			}
		}
	}

	return lexicalVerdict{
		label:     datatypes.IntentOpenQuestion,
		decisive:  true,
		rationale: "no marker matched",
	}
}
