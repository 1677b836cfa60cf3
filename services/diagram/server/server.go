// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server wires the diagram service together and runs it. Both
// the service binary and the CLI's serve command call Run.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/diagramlab/diagramlab/pkg/logging"
	"github.com/diagramlab/diagramlab/services/diagram/advisor"
	"github.com/diagramlab/diagramlab/services/diagram/artifacts"
	"github.com/diagramlab/diagramlab/services/diagram/config"
	"github.com/diagramlab/diagramlab/services/diagram/engine"
	"github.com/diagramlab/diagramlab/services/diagram/feedback"
	"github.com/diagramlab/diagramlab/services/diagram/handlers"
	"github.com/diagramlab/diagramlab/services/diagram/observability"
	"github.com/diagramlab/diagramlab/services/diagram/resolver"
	"github.com/diagramlab/diagramlab/services/diagram/routes"
	"github.com/diagramlab/diagramlab/services/diagram/session"
	"github.com/diagramlab/diagramlab/services/diagram/symbols"
	"github.com/diagramlab/diagramlab/services/llm"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("diagram-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// Run starts the diagram service and blocks until SIGINT/SIGTERM, then
// drains in-flight requests.
func Run() error {
	cfg := config.FromEnv()

	recorder := logging.NewRecorder(0, 0)
	logging.Setup(logging.Config{
		Level:    cfg.LogLevel,
		Service:  "diagram",
		Recorder: recorder,
	})

	cleanup, err := initTracer(cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("setting up the OTLP tracer: %w", err)
	}
	defer cleanup(context.Background())

	index, err := symbols.NewIndex()
	if err != nil {
		return fmt.Errorf("loading symbol tables: %w", err)
	}
	registry, err := symbols.LoadRegistry()
	if err != nil {
		return fmt.Errorf("loading node registry: %w", err)
	}
	res, err := resolver.New(index, registry)
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}
	adv, err := advisor.New()
	if err != nil {
		return fmt.Errorf("loading advisor patterns: %w", err)
	}

	artifactStore, err := artifacts.NewStore(cfg.OutputDir, cfg.ArtifactRetention)
	if err != nil {
		return fmt.Errorf("preparing artifact directory: %w", err)
	}

	var feedbackStore *feedback.Store
	if cfg.FeedbackDir != "" {
		feedbackStore, err = feedback.Open(cfg.FeedbackDir)
		if err != nil {
			return fmt.Errorf("opening feedback store: %w", err)
		}
		defer feedbackStore.Close()
	} else {
		slog.Info("DIAGRAM_FEEDBACK_DIR not set, feedback endpoints disabled")
	}

	slog.Info("Configuring the LLM client")
	llmClient, err := llm.NewFromEnv()
	if err != nil {
		return fmt.Errorf("initializing LLM client: %w", err)
	}
	architect := llm.NewArchitect(llm.NewRateLimited(llmClient, cfg.LLMRPS, cfg.LLMBurst))

	sessions := session.NewStore(cfg.SessionTTL)
	runner := engine.NewRunner(
		engine.WithInterpreter(cfg.Interpreter...),
		engine.WithTimeout(cfg.RenderTimeout))

	deps := &handlers.Deps{
		Architect:  architect,
		Renderer:   runner,
		Resolver:   res,
		Advisor:    adv,
		Index:      index,
		Registry:   registry,
		Sessions:   sessions,
		Artifacts:  artifactStore,
		Feedback:   feedbackStore,
		Recorder:   recorder,
		BaseURL:    cfg.BaseURL,
		LLMTimeout: cfg.LLMTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions.StartSweeper(ctx, cfg.SessionSweepInterval)
	artifactStore.StartSweeper(ctx, cfg.ArtifactSweepInterval)
	go func() {
		if err := artifactStore.Watch(ctx); err != nil {
			slog.Warn("artifact watcher stopped", "error", err.Error())
		}
	}()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.SessionsLive.Set(float64(sessions.Len()))
			}
		}
	}()

	router := gin.Default()
	routes.SetupRoutes(router, deps, cfg.CORSOrigins, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting the diagram server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	return nil
}
