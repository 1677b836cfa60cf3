// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package advisor

// Architectural layers, outermost first. Components are ordered by layer
// before emission so the rendered flow reads edge -> network -> app ->
// compute -> data.
const (
	layerEdge        = 0
	layerPerimeter   = 1
	layerNetwork     = 2
	layerSubnet      = 3
	layerApplication = 4
	layerCompute     = 5
	layerIntegration = 6
	layerData        = 7
	layerAnalytics   = 8
	layerManagement  = 9

	// layerDefault places unknown types mid-diagram rather than at
	// either extreme.
	layerDefault = layerCompute
)

// typeLayers maps aws type ids to their architectural layer.
var typeLayers = map[string]int{
	"user":  layerEdge,
	"users": layerEdge,
	"client": layerEdge,
	"route53": layerEdge,

	"cloudfront": layerPerimeter,
	"waf":        layerPerimeter,
	"shield":     layerPerimeter,

	"vpc":              layerNetwork,
	"internet_gateway": layerNetwork,
	"transit_gateway":  layerNetwork,
	"vpn_gateway":      layerNetwork,
	"direct_connect":   layerNetwork,

	"subnet":         layerSubnet,
	"public_subnet":  layerSubnet,
	"private_subnet": layerSubnet,
	"nat_gateway":    layerSubnet,
	"alb":            layerSubnet,
	"nlb":            layerSubnet,
	"elb":            layerSubnet,
	"load_balancer":  layerSubnet,

	"api_gateway": layerApplication,
	"appsync":     layerApplication,
	"cognito":     layerApplication,

	"lambda":    layerCompute,
	"ec2":       layerCompute,
	"ecs":       layerCompute,
	"eks":       layerCompute,
	"fargate":   layerCompute,
	"batch":     layerCompute,
	"lightsail": layerCompute,
	"function":  layerCompute,

	"sqs":            layerIntegration,
	"sns":            layerIntegration,
	"eventbridge":    layerIntegration,
	"step_functions": layerIntegration,
	"mq":             layerIntegration,
	"queue":          layerIntegration,

	"rds":         layerData,
	"aurora":      layerData,
	"dynamodb":    layerData,
	"elasticache": layerData,
	"neptune":     layerData,
	"documentdb":  layerData,
	"database":    layerData,
	"db":          layerData,
	"s3":          layerData,
	"efs":         layerData,
	"ebs":         layerData,
	"storage":     layerData,

	"redshift":   layerAnalytics,
	"kinesis":    layerAnalytics,
	"firehose":   layerAnalytics,
	"emr":        layerAnalytics,
	"glue":       layerAnalytics,
	"athena":     layerAnalytics,
	"quicksight": layerAnalytics,
	"sagemaker":  layerAnalytics,
	"bedrock":    layerAnalytics,

	"iam":             layerManagement,
	"kms":             layerManagement,
	"secrets_manager": layerManagement,
	"cloudwatch":      layerManagement,
	"cloudtrail":      layerManagement,
	"config":          layerManagement,
	"systems_manager": layerManagement,
	"organizations":   layerManagement,
}

// layerNames label auto-formed clusters.
var layerNames = map[int]string{
	layerEdge:        "Edge",
	layerPerimeter:   "Perimeter",
	layerNetwork:     "Network",
	layerSubnet:      "Network",
	layerApplication: "Application",
	layerCompute:     "Compute",
	layerIntegration: "Integration",
	layerData:        "Data",
	layerAnalytics:   "Analytics",
	layerManagement:  "Security & Management",
}

// layerOf returns the architectural layer for a type id.
func layerOf(typeID string) int {
	if l, ok := typeLayers[typeID]; ok {
		return l
	}
	return layerDefault
}

// typeDependencies lists infrastructure a type id cannot exist without.
// When a spec contains the dependent type but none of its dependencies,
// the advisor may synthesize them (unless the user restricted scope).
var typeDependencies = map[string][]string{
	"ec2":         {"vpc", "subnet"},
	"rds":         {"vpc", "subnet"},
	"aurora":      {"vpc", "subnet"},
	"elasticache": {"vpc", "subnet"},
	"ecs":         {"vpc"},
	"eks":         {"vpc"},
	"nat_gateway": {"vpc"},
	"alb":         {"vpc"},
	"nlb":         {"vpc"},
}

// databaseTypePrefixes identify connection targets that get south/north
// port pinning so edges enter databases from the top.
var databaseTypePrefixes = []string{
	"rds", "aurora", "dynamodb", "redshift", "elasticache", "neptune",
	"documentdb", "database", "db",
}
