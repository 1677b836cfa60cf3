// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// The diagramlab command is the operations CLI for the diagram service:
// regenerating symbol tables after a diagrams-library upgrade, and
// rendering or checking architecture spec files offline without the
// HTTP server or an LLM.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "diagramlab",
	Short:        "Operations CLI for the diagramlab diagram service",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
