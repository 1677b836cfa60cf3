// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/diagramlab/diagramlab/services/diagram/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the diagram HTTP service",
	Long:  "Starts the service configured from the environment (DIAGRAM_* variables) and blocks until SIGINT or SIGTERM.",
	RunE: func(*cobra.Command, []string) error {
		return server.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
