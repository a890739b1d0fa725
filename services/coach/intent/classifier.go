// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/gateway"
)

// Classifier labels user utterances.
//
// Description:
//
//	Applies the lexical pre-filter first. Experience-sharing markers and
//	marker-free utterances are decided locally without a gateway call; only
//	keyword-matched knowledge requests go to the gateway for confirmation,
//	with caching, request coalescing and a bounded number of in-flight
//	confirmations. A confirmed label is accepted only at or above the
//	configured confidence threshold; below it the utterance is treated as
//	open_question.
//
// Thread Safety: This type is safe for concurrent use after initialization.
type Classifier struct {
	gateway   gateway.Gateway
	config    Config
	cache     *resultCache
	inflight  singleflight.Group
	semaphore chan struct{}
}

// NewClassifier creates a classifier backed by the given gateway.
//
// Inputs:
//
//	gw - Gateway for confirmation calls. Must not be nil.
//	config - Classifier configuration. Will be validated.
//
// Outputs:
//
//	*Classifier - Ready-to-use classifier.
//	error - If gw is nil or config invalid.
func NewClassifier(gw gateway.Gateway, config Config) (*Classifier, error) {
	if gw == nil {
		return nil, errors.New("gateway must not be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{gateway: gw, config: config}
	if config.CacheTTL > 0 {
		c.cache = newResultCache(config.CacheTTL, config.CacheMaxSize)
	}
	if config.MaxConcurrent > 0 {
		c.semaphore = make(chan struct{}, config.MaxConcurrent)
	}
	return c, nil
}

// Classify labels one utterance given the session history so far.
//
// Outputs:
//
//	*Result - The accepted label with confidence and provenance.
//	error - Only on context cancellation; gateway failures resolve to the
//	        open_question default instead.
func (c *Classifier) Classify(ctx context.Context, utterance string, history []datatypes.Message) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()

	ctx, span := otel.Tracer("intent").Start(ctx, "intent.Classifier.Classify",
		trace.WithAttributes(
			attribute.Int("utterance_length", len(utterance)),
		),
	)
	defer span.End()

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		result := &Result{
			Label:      datatypes.IntentOpenQuestion,
			Confidence: 1.0,
			Rationale:  "empty utterance",
			Source:     "default",
			Duration:   time.Since(startTime),
		}
		span.SetAttributes(attribute.String("label", string(result.Label)))
		recordResult(result)
		return result, nil
	}

	verdict := prefilter(utterance)
	if verdict.decisive {
		result := &Result{
			Label:      verdict.label,
			Confidence: 0.95,
			Rationale:  verdict.rationale,
			Source:     "lexical",
			Duration:   time.Since(startTime),
		}
		span.SetAttributes(
			attribute.String("label", string(result.Label)),
			attribute.String("source", "lexical"),
		)
		recordResult(result)
		return result, nil
	}

	// Request marker matched: confirm with the gateway.
	if c.cache != nil {
		if cached, ok := c.cache.Get(utterance); ok {
			cached.Duration = time.Since(startTime)
			span.SetAttributes(
				attribute.Bool("cached", true),
				attribute.String("label", string(cached.Label)),
			)
			recordResult(cached)
			return cached, nil
		}
	}

	resultAny, err, _ := c.inflight.Do(cacheKey(utterance), func() (interface{}, error) {
		return c.confirm(ctx, utterance, history, verdict)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context cancelled")
			return nil, err
		}
		// Gateway down after retries: degrade rather than fail the turn.
		result := c.degrade(utterance, verdict, err)
		result.Duration = time.Since(startTime)
		span.SetAttributes(
			attribute.String("label", string(result.Label)),
			attribute.String("source", result.Source),
		)
		recordResult(result)
		return result, nil
	}
	result := resultAny.(*Result)

	if c.cache != nil && result.Source == "gateway" {
		c.cache.Set(utterance, result)
	}

	result.Duration = time.Since(startTime)
	span.SetAttributes(
		attribute.String("label", string(result.Label)),
		attribute.String("source", result.Source),
		attribute.Float64("confidence", result.Confidence),
		attribute.Bool("low_confidence", result.LowConfidence),
	)
	recordResult(result)
	return result, nil
}

// confirm asks the gateway to confirm a candidate knowledge request.
func (c *Classifier) confirm(ctx context.Context, utterance string, history []datatypes.Message, verdict lexicalVerdict) (*Result, error) {
	if c.semaphore != nil {
		select {
		case c.semaphore <- struct{}{}:
			defer func() { <-c.semaphore }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	confirmed, err := c.gateway.Classify(callCtx, utterance, history)
	if err != nil {
		return nil, fmt.Errorf("confirm classification: %w", err)
	}

	if confirmed.Confidence < c.config.ConfidenceThreshold {
		slog.Debug("classification confidence below threshold, defaulting to open_question",
			slog.Float64("confidence", confirmed.Confidence),
			slog.Float64("threshold", c.config.ConfidenceThreshold),
		)
		return &Result{
			Label:         datatypes.IntentOpenQuestion,
			Confidence:    confirmed.Confidence,
			Rationale:     "gateway verdict below acceptance threshold",
			Source:        "gateway",
			LowConfidence: true,
		}, nil
	}

	return &Result{
		Label:      confirmed.Label,
		Confidence: confirmed.Confidence,
		Rationale:  confirmed.Rationale,
		Source:     "gateway",
	}, nil
}

// degrade resolves a confirmation failure to a usable verdict. A request
// candidate the gateway never confirmed stays open_question: the dialogue
// continues normally rather than surfacing material on an unconfirmed
// signal.
func (c *Classifier) degrade(utterance string, verdict lexicalVerdict, cause error) *Result {
	slog.Warn("classification gateway unavailable, candidate left unconfirmed",
		slog.String("candidate", string(verdict.label)),
		slog.String("error", cause.Error()),
	)
	return &Result{
		Label:         datatypes.IntentOpenQuestion,
		Confidence:    0.5,
		Rationale:     "gateway unavailable, request candidate unconfirmed",
		Source:        "fallback",
		LowConfidence: true,
	}
}

// CacheStats exposes cache hit rate and size, for the health endpoint.
func (c *Classifier) CacheStats() (hitRate float64, size int) {
	if c.cache == nil {
		return 0, 0
	}
	return c.cache.HitRate(), c.cache.Len()
}
