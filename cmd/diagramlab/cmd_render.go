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

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/diagramlab/diagramlab/services/diagram/advisor"
	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/engine"
	"github.com/diagramlab/diagramlab/services/diagram/resolver"
	"github.com/diagramlab/diagramlab/services/diagram/symbols"
)

var renderCmd = &cobra.Command{
	Use:   "render <spec.json>",
	Short: "Render an architecture spec file to diagram artifacts",
	Long: `Runs the full pipeline on a spec file, skipping only the LLM:
advisor passes, symbol resolution, code emission, and the renderer
subprocess. Useful for regression-checking saved specs.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var checkCmd = &cobra.Command{
	Use:   "check <spec.json>",
	Short: "Validate a spec file and resolve its components without rendering",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var renderFlags struct {
	outDir string
	python string
	plain  bool
}

func init() {
	renderCmd.Flags().StringVar(&renderFlags.outDir, "out", ".", "directory for rendered artifacts")
	renderCmd.Flags().StringVar(&renderFlags.python, "python", "python3", "python interpreter with the diagrams library installed")
	renderCmd.Flags().BoolVar(&renderFlags.plain, "plain", false, "skip advisor passes, render the spec exactly as written")
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(checkCmd)
}

func loadSpec(path string) (*datatypes.ArchitectureSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec datatypes.ArchitectureSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}
	return &spec, nil
}

func resolveSpec(ctx context.Context, spec *datatypes.ArchitectureSpec) (map[string]engine.Symbol, error) {
	index, err := symbols.NewIndex()
	if err != nil {
		return nil, err
	}
	registry, err := symbols.LoadRegistry()
	if err != nil {
		return nil, err
	}
	res, err := resolver.New(index, registry)
	if err != nil {
		return nil, err
	}
	syms := make(map[string]engine.Symbol, len(spec.Components))
	for _, comp := range spec.Components {
		r, err := res.Resolve(ctx, comp, spec.EffectiveProvider(comp))
		if err != nil {
			return nil, err
		}
		syms[comp.ID] = engine.Symbol{Module: r.Module, Class: r.Class}
	}
	return syms, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	if !renderFlags.plain {
		adv, err := advisor.New()
		if err != nil {
			return err
		}
		advised, changes := adv.Advise(spec, advisor.Options{})
		spec = advised
		for _, ch := range changes {
			fmt.Fprintf(cmd.OutOrStdout(), "advisor: %s\n", ch)
		}
	}

	syms, err := resolveSpec(cmd.Context(), spec)
	if err != nil {
		return err
	}

	runner := engine.NewRunner(engine.WithInterpreter(renderFlags.python))
	names, _, err := runner.Render(cmd.Context(), spec, syms, uuid.NewString(), renderFlags.outDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}
	syms, err := resolveSpec(cmd.Context(), spec)
	if err != nil {
		return err
	}
	for _, comp := range spec.Components {
		s := syms[comp.ID]
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s.%s\n", comp.ID, s.Module, s.Class)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d components, %d connections\n",
		len(spec.Components), len(spec.Connections))
	return nil
}
