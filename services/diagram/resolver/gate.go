// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolver

import (
	"strings"
)

// architectureKeywords are terms that indicate a cloud-architecture
// description. A request whose description contains none of them is
// rejected before it reaches the LLM: the call costs money and latency
// and the answer would not be a diagram anyway.
var architectureKeywords = []string{
	// Generic infrastructure vocabulary.
	"api", "app", "application", "architecture", "backend", "balancer",
	"bucket", "cache", "cdn", "cloud", "cluster", "container", "database",
	"db", "deploy", "diagram", "dns", "endpoint", "firewall", "frontend",
	"function", "gateway", "infra", "infrastructure", "instance",
	"kubernetes", "lambda", "microservice", "network", "pipeline", "queue",
	"serverless", "server", "service", "storage", "stream", "subnet",
	"topic", "vpc", "vpn", "web", "worker",
	// Provider and product names.
	"aws", "azure", "gcp", "ec2", "s3", "rds", "dynamodb", "sqs", "sns",
	"eks", "ecs", "fargate", "cloudfront", "route53", "kinesis",
	"redshift", "sagemaker", "cosmos", "aks", "bigquery", "gke", "pubsub",
	"firestore", "spanner",
}

// CheckDescription validates that a natural-language description looks
// like a cloud architecture request. Returns *InputRejectedError when it
// does not.
func CheckDescription(description string) error {
	lowered := strings.ToLower(description)
	words := nameTokens(lowered)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	for _, kw := range architectureKeywords {
		if set[kw] {
			return nil
		}
	}
	return &InputRejectedError{
		Reason: "the description does not appear to describe a cloud architecture; " +
			"mention the services or components to draw (e.g. \"an API gateway in front of a Lambda and DynamoDB\")",
	}
}
