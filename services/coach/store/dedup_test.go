// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

func TestDedupCache_RememberAndLookup(t *testing.T) {
	c := NewDedupCache(DefaultDedupWindow, 100)

	resp := &datatypes.TurnResponse{Type: datatypes.TurnTypeFollowUp, SessionID: "s1", Score: 45}
	c.Remember("1735817400.000100_U1_C1", resp)

	got, ok := c.Lookup("1735817400.000100_U1_C1")
	require.True(t, ok)
	assert.Equal(t, resp, got)

	_, ok = c.Lookup("1735817400.000200_U1_C1")
	assert.False(t, ok)
}

func TestDedupCache_WindowExpiry(t *testing.T) {
	c := NewDedupCache(20*time.Millisecond, 100)

	c.Remember("k1", nil)
	_, ok := c.Lookup("k1")
	require.True(t, ok, "entry should be live inside the window")

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Lookup("k1")
	assert.False(t, ok, "entry should expire after the window")
	assert.Equal(t, 0, c.Len())
}

func TestDedupCache_LRUEviction(t *testing.T) {
	c := NewDedupCache(DefaultDedupWindow, 3)

	for i := 0; i < 4; i++ {
		c.Remember(fmt.Sprintf("k%d", i), nil)
	}

	assert.Equal(t, 3, c.Len())
	_, ok := c.Lookup("k0")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Lookup("k3")
	assert.True(t, ok)
}

func TestDedupCache_NilResponseStillSuppresses(t *testing.T) {
	c := NewDedupCache(DefaultDedupWindow, 100)

	c.Remember("bot-echo", nil)
	got, ok := c.Lookup("bot-echo")
	assert.True(t, ok)
	assert.Nil(t, got)
}

func TestDedupCache_BackgroundSweep(t *testing.T) {
	c := NewDedupCache(15*time.Millisecond, 100)
	c.Start()
	defer c.Stop()

	c.Remember("k1", nil)
	c.Remember("k2", nil)

	assert.Eventually(t, func() bool { return c.Len() == 0 },
		500*time.Millisecond, 10*time.Millisecond,
		"sweeper should remove expired entries without lookups")
}

func TestDedupCache_HitRate(t *testing.T) {
	c := NewDedupCache(DefaultDedupWindow, 100)

	c.Remember("k1", nil)
	c.Lookup("k1")
	c.Lookup("k1")
	c.Lookup("absent")

	assert.InDelta(t, 2.0/3.0, c.HitRate(), 0.001)
}
