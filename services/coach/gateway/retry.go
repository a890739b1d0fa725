// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// Retrying Wrapper
// =============================================================================

// RetryConfig controls the retrying wrapper.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Backoff is the base delay before a retry, doubled per attempt.
	Backoff time.Duration

	// RatePerSecond caps outbound calls to the wrapped provider.
	// Zero disables rate limiting.
	RatePerSecond float64

	// Burst is the limiter burst size when rate limiting is enabled.
	Burst int
}

// DefaultRetryConfig retries once after 200ms and allows 5 calls/s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    1,
		Backoff:       200 * time.Millisecond,
		RatePerSecond: 5,
		Burst:         10,
	}
}

// Retrying wraps a Gateway with transient-failure retries and outbound rate
// limiting.
//
// # Description
//
// Each capability call waits on the limiter, then attempts the wrapped
// provider up to 1+MaxRetries times with exponential backoff. Only transient
// failures (ErrUnavailable, ErrTimeout) are retried; malformed-output and
// context errors surface immediately.
//
// # Thread Safety
//
// Safe for concurrent use.
type Retrying struct {
	inner   Gateway
	config  RetryConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRetrying wraps inner with the given retry policy.
func NewRetrying(inner Gateway, config RetryConfig, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retrying{inner: inner, config: config, logger: logger}
	if config.RatePerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}
	return r
}

// Name implements the Gateway interface.
func (r *Retrying) Name() string { return r.inner.Name() }

// do runs op with the retry policy applied.
func (r *Retrying) do(ctx context.Context, capability string, op func(context.Context) error) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.config.Backoff * time.Duration(1<<(attempt-1))
			r.logger.Debug("retrying gateway call",
				"capability", capability,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}
	r.logger.Warn("gateway call failed after retries",
		"capability", capability,
		"provider", r.inner.Name(),
		"error", lastErr,
	)
	return lastErr
}

// Classify implements the Gateway interface.
func (r *Retrying) Classify(ctx context.Context, utterance string, history []datatypes.Message) (*ClassifyResult, error) {
	var result *ClassifyResult
	err := r.do(ctx, "classify", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.inner.Classify(ctx, utterance, history)
		return opErr
	})
	return result, err
}

// GenerateQuestions implements the Gateway interface.
func (r *Retrying) GenerateQuestions(ctx context.Context, req *QuestionRequest) ([]string, error) {
	var result []string
	err := r.do(ctx, "generate_questions", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.inner.GenerateQuestions(ctx, req)
		return opErr
	})
	return result, err
}

// ScoreCompleteness implements the Gateway interface.
func (r *Retrying) ScoreCompleteness(ctx context.Context, req *ScoreRequest) (*datatypes.CompletenessAssessment, error) {
	var result *datatypes.CompletenessAssessment
	err := r.do(ctx, "score_completeness", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.inner.ScoreCompleteness(ctx, req)
		return opErr
	})
	return result, err
}

// GeneratePlan implements the Gateway interface.
func (r *Retrying) GeneratePlan(ctx context.Context, req *PlanRequest) (*datatypes.ActionPlan, error) {
	var result *datatypes.ActionPlan
	err := r.do(ctx, "generate_plan", func(ctx context.Context) error {
		var opErr error
		result, opErr = r.inner.GeneratePlan(ctx, req)
		return opErr
	})
	return result, err
}
