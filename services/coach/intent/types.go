// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intent classifies user utterances in a coaching dialogue.
//
// Classification is two-stage: a lexical pre-filter handles the cheap,
// unambiguous cases locally, and only keyword-matched knowledge requests go
// to the LLM gateway for confirmation. Experience-sharing markers always win
// over request keywords, so "for example, I called..." is never mistaken for
// a request to be given an example.
package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// Result contains the classifier's verdict on one utterance.
//
// Thread Safety: This type is immutable after creation and safe for
// concurrent read.
type Result struct {
	// Label is the accepted intent label.
	Label datatypes.IntentLabel `json:"label"`

	// Confidence is the confidence associated with the accepted label
	// (0.0-1.0). For lexical verdicts this is the rule confidence.
	Confidence float64 `json:"confidence"`

	// Rationale explains the verdict, for diagnostics only.
	Rationale string `json:"rationale,omitempty"`

	// Source records which stage produced the label:
	// "lexical", "gateway", "fallback" or "default".
	Source string `json:"-"`

	// Cached indicates this result came from cache.
	Cached bool `json:"-"`

	// LowConfidence indicates the gateway verdict was discarded for being
	// below the acceptance threshold. Soft signal, never an error.
	LowConfidence bool `json:"-"`

	// Duration is how long classification took.
	Duration time.Duration `json:"-"`
}

// Config configures the classifier behavior.
//
// Thread Safety: This type should not be modified after passing to
// NewClassifier.
type Config struct {
	// ConfidenceThreshold below which a gateway verdict is discarded in
	// favor of the open_question default.
	ConfidenceThreshold float64

	// Timeout for each gateway confirmation attempt.
	Timeout time.Duration

	// CacheTTL is how long to cache confirmation results. 0 disables
	// caching.
	CacheTTL time.Duration

	// CacheMaxSize is maximum cache entries before LRU eviction.
	// Must be > 0 if CacheTTL > 0.
	CacheMaxSize int

	// MaxConcurrent limits simultaneous gateway confirmations.
	// 0 = unlimited.
	MaxConcurrent int
}

// Validate checks that config values are within valid ranges.
func (c Config) Validate() error {
	var errs []string

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, "ConfidenceThreshold must be between 0.0 and 1.0")
	}
	if c.Timeout <= 0 {
		errs = append(errs, "Timeout must be positive")
	}
	if c.CacheTTL > 0 && c.CacheMaxSize <= 0 {
		errs = append(errs, "CacheMaxSize must be positive when CacheTTL > 0")
	}
	if c.MaxConcurrent < 0 {
		errs = append(errs, "MaxConcurrent must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid classifier config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DefaultConfig returns production defaults: 0.7 acceptance threshold,
// 5 second confirmation timeout, 10 minute cache with 1000 entries, at most
// 10 concurrent gateway confirmations.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		Timeout:             5 * time.Second,
		CacheTTL:            10 * time.Minute,
		CacheMaxSize:        1000,
		MaxConcurrent:       10,
	}
}
