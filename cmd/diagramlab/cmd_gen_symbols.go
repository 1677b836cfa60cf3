// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// introspectScript dumps every node class exported by the installed
// diagrams library for one provider, as JSON keyed by module path.
// Node subclasses are identified by the _icon attribute the library
// sets on every renderable class.
const introspectScript = `
import importlib, inspect, json, pkgutil, sys

provider = sys.argv[1]
root = importlib.import_module("diagrams." + provider)
out = {}
for m in pkgutil.iter_modules(root.__path__):
    name = "diagrams.%s.%s" % (provider, m.name)
    mod = importlib.import_module(name)
    classes = []
    for attr, obj in vars(mod).items():
        if inspect.isclass(obj) and getattr(obj, "_icon", None) and not attr.startswith("_"):
            classes.append(attr)
    if classes:
        out[name] = classes
print(json.dumps(out))
`

var genSymbolsCmd = &cobra.Command{
	Use:   "gen-symbols",
	Short: "Regenerate a provider's symbol table from the installed diagrams library",
	Long: `Introspects the Python diagrams library and rewrites the embedded
symbol table for one provider. Run after upgrading the library, then
rebuild so the new table is embedded.`,
	RunE: runGenSymbols,
}

var genSymbolsFlags struct {
	provider string
	python   string
	outDir   string
}

func init() {
	genSymbolsCmd.Flags().StringVar(&genSymbolsFlags.provider, "provider", "aws", "provider to introspect (aws, azure, gcp)")
	genSymbolsCmd.Flags().StringVar(&genSymbolsFlags.python, "python", "python3", "python interpreter with the diagrams library installed")
	genSymbolsCmd.Flags().StringVar(&genSymbolsFlags.outDir, "out", "services/diagram/symbols", "directory holding the table_<provider>.yaml files")
	rootCmd.AddCommand(genSymbolsCmd)
}

func runGenSymbols(cmd *cobra.Command, _ []string) error {
	provider := genSymbolsFlags.provider
	switch provider {
	case "aws", "azure", "gcp":
	default:
		return fmt.Errorf("unsupported provider %q", provider)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	out, err := exec.CommandContext(ctx, genSymbolsFlags.python, "-c", introspectScript, provider).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("introspection failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return fmt.Errorf("running %s: %w", genSymbolsFlags.python, err)
	}

	var modules map[string][]string
	if err := json.Unmarshal(out, &modules); err != nil {
		return fmt.Errorf("parsing introspection output: %w", err)
	}
	if len(modules) == 0 {
		return fmt.Errorf("no node classes found for provider %q", provider)
	}

	path := filepath.Join(genSymbolsFlags.outDir, "table_"+provider+".yaml")
	if err := os.WriteFile(path, renderTable(provider, modules), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d modules)\n", path, len(modules))
	return nil
}

// renderTable writes the table by hand rather than through a YAML
// encoder so the generated-file header survives and the layout stays
// diffable against the checked-in tables.
func renderTable(provider string, modules map[string][]string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Code generated by \"diagramlab gen-symbols --provider %s\"; DO NOT EDIT.\n", provider)
	b.WriteString("# Snapshot of every exported node class in the installed diagrams library,\n")
	b.WriteString("# including re-exported symbols. Regenerate after upgrading the library.\n")
	fmt.Fprintf(&b, "provider: %s\n", provider)
	b.WriteString("modules:\n")

	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  %s:\n", name)
		for _, class := range modules[name] {
			fmt.Fprintf(&b, "    - %s\n", class)
		}
	}
	return []byte(b.String())
}
