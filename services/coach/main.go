// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/CoachPilotAI/CoachPilot/services/coach/config"
	"github.com/CoachPilotAI/CoachPilot/services/coach/dialogue"
	"github.com/CoachPilotAI/CoachPilot/services/coach/gateway"
	"github.com/CoachPilotAI/CoachPilot/services/coach/intent"
	"github.com/CoachPilotAI/CoachPilot/services/coach/knowledge"
	"github.com/CoachPilotAI/CoachPilot/services/coach/observability"
	"github.com/CoachPilotAI/CoachPilot/services/coach/routes"
	"github.com/CoachPilotAI/CoachPilot/services/coach/store"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "coachpilot-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("coach-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildGateway selects the language gateway backend and wraps it with
// retry and rate limiting.
func buildGateway(cfg *config.Config, logger *slog.Logger) gateway.Gateway {
	var inner gateway.Gateway
	switch cfg.Gateway.Backend {
	case "openai":
		gw, err := gateway.NewOpenAIGateway()
		if err != nil {
			slog.Warn("OpenAI gateway unavailable, falling back to deterministic backend", "error", err)
			inner = gateway.NewDeterministic()
			break
		}
		if cfg.Gateway.Model != "" {
			gw.WithModel(cfg.Gateway.Model)
		}
		inner = gw
		slog.Info("Using OpenAI language gateway", "model", cfg.Gateway.Model)
	default:
		inner = gateway.NewDeterministic()
		slog.Info("Using deterministic language gateway")
	}

	retryCfg := gateway.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.Gateway.MaxRetries
	if cfg.Gateway.RatePerSecond > 0 {
		retryCfg.RatePerSecond = cfg.Gateway.RatePerSecond
	}
	return gateway.NewRetrying(inner, retryCfg, logger)
}

// buildStore opens the Badger session store with an in-memory fallback so
// a disk failure degrades service instead of taking it down.
func buildStore(cfg *config.Config, logger *slog.Logger) *store.Failover {
	ttl := cfg.Store.SessionTTL.Std()

	var badgerCfg store.BadgerConfig
	if cfg.Store.InMemory {
		badgerCfg = store.InMemoryBadgerConfig()
	} else {
		badgerCfg = store.DefaultBadgerConfig(cfg.Store.Path)
	}
	badgerCfg.SessionTTL = ttl
	badgerCfg.Logger = logger

	fallback := store.NewMemoryStore(ttl)

	primary, err := store.OpenBadger(badgerCfg)
	if err != nil {
		slog.Error("session store unavailable, running on in-memory sessions only",
			"path", cfg.Store.Path, "error", err)
		failover := store.NewFailover(fallback, store.NewMemoryStore(ttl), logger)
		return failover
	}
	return store.NewFailover(primary, fallback, logger)
}

// buildKnowledge picks the knowledge backend: Weaviate when configured,
// otherwise the seed-file in-memory searcher, otherwise none.
func buildKnowledge(cfg *config.Config, logger *slog.Logger) knowledge.Searcher {
	weaviateURL := strings.Trim(cfg.Knowledge.WeaviateURL, "\"' ")
	if weaviateURL != "" && strings.Contains(weaviateURL, "http") {
		parsedURL, err := url.Parse(weaviateURL)
		if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
			slog.Warn("Weaviate URL is invalid, knowledge base runs in lightweight mode",
				"url", weaviateURL, "error", err)
		} else {
			client, err := weaviate.NewClient(weaviate.Config{
				Host:   parsedURL.Host,
				Scheme: parsedURL.Scheme,
			})
			if err != nil {
				slog.Error("Failed to create Weaviate client", "error", err)
			} else {
				kb := knowledge.NewWeaviate(client, logger)
				if err := kb.EnsureSchema(context.Background()); err != nil {
					slog.Error("Failed to ensure Weaviate knowledge schema", "error", err)
				} else {
					slog.Info("Using Weaviate knowledge base", "host", parsedURL.Host)
					return kb
				}
			}
		}
	}

	if cfg.Knowledge.SeedPath != "" {
		kb, err := knowledge.OpenMemory(cfg.Knowledge.SeedPath, logger)
		if err != nil {
			slog.Error("Failed to load knowledge seed file", "path", cfg.Knowledge.SeedPath, "error", err)
			return nil
		}
		slog.Info("Using in-memory knowledge base", "seed", cfg.Knowledge.SeedPath)
		return kb
	}

	slog.Info("No knowledge backend configured. Running without reference material.")
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}

	observability.InitMetrics()

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	sessions := buildStore(cfg, logger)
	defer sessions.Close()

	gw := buildGateway(cfg, logger)

	classifier, err := intent.NewClassifier(gw, intent.DefaultConfig())
	if err != nil {
		log.Fatalf("FATAL: could not initialize the intent classifier: %v", err)
	}

	searcher := buildKnowledge(cfg, logger)

	dedup := store.NewDedupCache(cfg.Dedup.Window.Std(), cfg.Dedup.MaxEntries)
	dedup.Start()
	defer dedup.Stop()

	orchestrator, err := dialogue.NewOrchestrator(sessions, gw, classifier, searcher, dedup, dialogue.Config{
		MaxQuestionRounds:   cfg.Dialogue.MaxQuestionRounds,
		MinInitialQuestions: cfg.Dialogue.MinInitialQuestions,
		TerminationKeywords: cfg.Dialogue.TerminationKeywords,
		BotUserID:           cfg.Dialogue.BotUserID,
	}, logger)
	if err != nil {
		log.Fatalf("FATAL: could not initialize the dialogue orchestrator: %v", err)
	}

	sweeper := dialogue.NewSweeper(orchestrator, dialogue.SweeperConfig{
		Interval: cfg.Store.SweepInterval.Std(),
	}, logger)
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatalf("FATAL: could not start the session sweeper: %v", err)
	}
	defer sweeper.Stop()

	router := gin.Default()
	router.Use(otelgin.Middleware("coach-service"))
	routes.SetupRoutes(router, orchestrator, searcher, sessions)

	slog.Info("Starting the coach server", "port", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
