// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

// edgeOperators are the renderer's connection operators, in the order
// an editor should offer them.
var edgeOperators = []string{">>", "<<", "-"}

// HandleCompletions is GET /api/completions/:provider: everything a
// code editor needs to autocomplete renderer code for one provider.
func HandleCompletions(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := datatypes.Provider(c.Param("provider"))
		if !provider.Valid() {
			failKind(c, "completions", http.StatusBadRequest, kindValidation,
				"unknown provider "+c.Param("provider"), nil)
			return
		}

		classes := make(map[string][]string)
		for _, module := range deps.Index.ProviderModules(provider) {
			classes[module] = deps.Index.ClassesIn(module)
		}

		keywordIndex := deps.Registry.Keywords(provider)
		keywords := make([]string, 0, len(keywordIndex))
		for kw := range keywordIndex {
			keywords = append(keywords, kw)
		}
		slices.Sort(keywords)

		succeed(c, "completions", http.StatusOK, datatypes.CompletionsResponse{
			Classes:   classes,
			Imports:   deps.Registry.Modules(provider),
			Keywords:  keywords,
			Operators: edgeOperators,
		})
	}
}

// exampleDescriptions seed the UI's "try one of these" list.
var exampleDescriptions = []string{
	"A serverless API: API Gateway in front of a Lambda function backed by DynamoDB",
	"A three-tier web application on AWS with an ALB, EC2 instances and an RDS database inside a VPC",
	"A streaming pipeline where Kinesis feeds a Lambda that writes to S3",
	"A fan-out: SNS topic pushing to two SQS queues, each consumed by its own Lambda",
	"CloudFront serving static assets from an S3 bucket with Route53 DNS",
	"An EKS cluster in private subnets behind an ALB, with ElastiCache and Aurora",
}

// HandleExamples is GET /api/examples.
func HandleExamples() gin.HandlerFunc {
	return func(c *gin.Context) {
		succeed(c, "examples", http.StatusOK, gin.H{"examples": exampleDescriptions})
	}
}
