// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability defines the service's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts API requests by endpoint and outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "diagramlab_requests_total",
		Help: "Total API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// RenderDuration tracks end-to-end render latency, LLM excluded.
	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "diagramlab_render_duration_seconds",
		Help:    "Diagram render duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"provider"})

	// LLMDuration tracks architect LLM call latency.
	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "diagramlab_llm_duration_seconds",
		Help:    "LLM architect call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
	}, []string{"operation"})

	// ActiveRenders gauges in-flight render subprocesses.
	ActiveRenders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "diagramlab_active_renders",
		Help: "Render subprocesses currently running",
	})

	// ResolverLookups counts component resolutions by stage that
	// satisfied them.
	ResolverLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "diagramlab_resolver_lookups_total",
		Help: "Component resolutions by satisfying stage",
	}, []string{"stage"})

	// SessionsLive gauges live sessions in the store.
	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "diagramlab_sessions_live",
		Help: "Sessions currently held in memory",
	})

	// SessionsSwept counts sessions evicted by the TTL sweeper.
	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "diagramlab_sessions_swept_total",
		Help: "Sessions evicted after idling past their TTL",
	})

	// ArtifactsOnDisk gauges artifact files in the output directory.
	ArtifactsOnDisk = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "diagramlab_artifacts_on_disk",
		Help: "Artifact files currently in the output directory",
	})

	// ArtifactsSwept counts artifacts deleted by the retention sweeper.
	ArtifactsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "diagramlab_artifacts_swept_total",
		Help: "Artifact files deleted after exceeding retention",
	})

	// FeedbackTotal counts feedback submissions by rating.
	FeedbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "diagramlab_feedback_total",
		Help: "Feedback submissions by rating",
	}, []string{"rating"})
)
