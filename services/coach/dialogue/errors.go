// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialogue

import (
	"errors"

	"github.com/CoachPilotAI/CoachPilot/services/coach/store"
)

// ErrInvalidContext indicates a session start request with an empty or
// whitespace-only initial context.
var ErrInvalidContext = errors.New("initial context must not be empty")

// ErrSessionNotFound mirrors the store sentinel so callers can match
// lookup failures without importing the store package.
var ErrSessionNotFound = store.ErrSessionNotFound

// ErrSessionClosed indicates a turn was submitted against an archived
// session.
var ErrSessionClosed = errors.New("session is closed")
