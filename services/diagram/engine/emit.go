// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
)

// Symbol is a resolved renderer class: the module it is imported from
// and the class name itself.
type Symbol struct {
	Module string
	Class  string
}

// pythonKeywords that an id-derived variable name must not shadow.
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,
}

// EmitPython renders a spec into source for the Python diagrams package.
// The output is fully deterministic for a given input: imports sorted and
// grouped, components in spec order, attribute dict keys sorted. The
// caller supplies the symbol for every component id; a missing symbol is
// a bug upstream and returns an error rather than emitting broken code.
func EmitPython(spec *datatypes.ArchitectureSpec, symbols map[string]Symbol, filenameStem string) (string, error) {
	for _, c := range spec.Components {
		if _, ok := symbols[c.ID]; !ok {
			return "", fmt.Errorf("no symbol for component %q", c.ID)
		}
	}

	var b strings.Builder
	writeImports(&b, spec, symbols)
	b.WriteString("\n")
	writeDiagramHeader(&b, spec, filenameStem)

	names := assignVarNames(spec)
	writeNodes(&b, spec, symbols, names)
	writeEdges(&b, spec, names)
	return b.String(), nil
}

func writeImports(b *strings.Builder, spec *datatypes.ArchitectureSpec, symbols map[string]Symbol) {
	core := []string{"Diagram"}
	if len(spec.Clusters) > 0 {
		core = append(core, "Cluster")
	}
	if edgeWrapperNeeded(spec) {
		core = append(core, "Edge")
	}
	slices.Sort(core)
	fmt.Fprintf(b, "from diagrams import %s\n", strings.Join(core, ", "))

	byModule := make(map[string]map[string]bool)
	for _, c := range spec.Components {
		sym := symbols[c.ID]
		if byModule[sym.Module] == nil {
			byModule[sym.Module] = make(map[string]bool)
		}
		byModule[sym.Module][sym.Class] = true
	}
	modules := make([]string, 0, len(byModule))
	for m := range byModule {
		modules = append(modules, m)
	}
	slices.Sort(modules)
	for _, m := range modules {
		classes := make([]string, 0, len(byModule[m]))
		for cl := range byModule[m] {
			classes = append(classes, cl)
		}
		slices.Sort(classes)
		fmt.Fprintf(b, "from %s import %s\n", m, strings.Join(classes, ", "))
	}
}

func edgeWrapperNeeded(spec *datatypes.ArchitectureSpec) bool {
	for _, conn := range spec.Connections {
		if conn.Label != "" || len(conn.GraphvizAttrs) > 0 {
			return true
		}
	}
	return false
}

func writeDiagramHeader(b *strings.Builder, spec *datatypes.ArchitectureSpec, filenameStem string) {
	fmt.Fprintf(b, "with Diagram(%s, filename=%s, show=False",
		pyStr(spec.Title), pyStr(filenameStem))
	if spec.Direction != "" {
		fmt.Fprintf(b, ", direction=%s", pyStr(string(spec.Direction)))
	}
	switch len(spec.OutFormats) {
	case 0:
		// diagrams defaults to png
	case 1:
		fmt.Fprintf(b, ", outformat=%s", pyStr(string(spec.OutFormats[0])))
	default:
		parts := make([]string, len(spec.OutFormats))
		for i, f := range spec.OutFormats {
			parts[i] = pyStr(string(f))
		}
		fmt.Fprintf(b, ", outformat=[%s]", strings.Join(parts, ", "))
	}
	if len(spec.GraphvizAttrs.Graph) > 0 {
		fmt.Fprintf(b, ", graph_attr=%s", pyDict(spec.GraphvizAttrs.Graph))
	}
	if len(spec.GraphvizAttrs.Node) > 0 {
		fmt.Fprintf(b, ", node_attr=%s", pyDict(spec.GraphvizAttrs.Node))
	}
	if len(spec.GraphvizAttrs.Edge) > 0 {
		fmt.Fprintf(b, ", edge_attr=%s", pyDict(spec.GraphvizAttrs.Edge))
	}
	b.WriteString("):\n")
}

// assignVarNames derives a unique python identifier per component id.
func assignVarNames(spec *datatypes.ArchitectureSpec) map[string]string {
	names := make(map[string]string, len(spec.Components))
	taken := make(map[string]bool, len(spec.Components))
	for _, c := range spec.Components {
		name := pythonIdent(c.ID)
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", pythonIdent(c.ID), n)
		}
		names[c.ID] = name
		taken[name] = true
	}
	return names
}

// writeNodes emits component constructors, nesting cluster blocks from
// the flat parent forest. Unclustered components come first at diagram
// scope, then each root cluster subtree.
func writeNodes(b *strings.Builder, spec *datatypes.ArchitectureSpec, symbols map[string]Symbol, names map[string]string) {
	owner := make(map[string]string) // component id -> cluster id
	children := make(map[string][]datatypes.Cluster)
	var roots []datatypes.Cluster
	for _, cl := range spec.Clusters {
		for _, cid := range cl.ComponentIDs {
			owner[cid] = cl.ID
		}
		if cl.ParentID == "" {
			roots = append(roots, cl)
		} else {
			children[cl.ParentID] = append(children[cl.ParentID], cl)
		}
	}

	emitComponent := func(c datatypes.Component, indent string) {
		sym := symbols[c.ID]
		fmt.Fprintf(b, "%s%s = %s(%s", indent, names[c.ID], sym.Class, pyStr(c.Name))
		if len(c.GraphvizAttrs) > 0 {
			fmt.Fprintf(b, ", %s", pyKwargs(c.GraphvizAttrs))
		}
		b.WriteString(")\n")
	}

	for _, c := range spec.Components {
		if owner[c.ID] == "" {
			emitComponent(c, "    ")
		}
	}

	var emitCluster func(cl datatypes.Cluster, depth int)
	emitCluster = func(cl datatypes.Cluster, depth int) {
		indent := strings.Repeat("    ", depth)
		fmt.Fprintf(b, "%swith Cluster(%s", indent, pyStr(cl.Name))
		if len(cl.GraphvizAttrs) > 0 {
			fmt.Fprintf(b, ", graph_attr=%s", pyDict(cl.GraphvizAttrs))
		}
		b.WriteString("):\n")
		inner := indent + "    "
		wrote := false
		for _, c := range spec.Components {
			if owner[c.ID] == cl.ID {
				emitComponent(c, inner)
				wrote = true
			}
		}
		for _, child := range children[cl.ID] {
			emitCluster(child, depth+1)
			wrote = true
		}
		if !wrote {
			fmt.Fprintf(b, "%spass\n", inner)
		}
	}
	for _, cl := range roots {
		emitCluster(cl, 1)
	}
}

// writeEdges emits connections. Plain forward edges sharing a target are
// grouped into a single [a, b] >> target statement at the position of
// the first member; labeled or attributed edges get an Edge() wrapper.
func writeEdges(b *strings.Builder, spec *datatypes.ArchitectureSpec, names map[string]string) {
	if len(spec.Connections) == 0 {
		return
	}
	b.WriteString("\n")

	type groupKey struct {
		toID string
	}
	groups := make(map[groupKey][]string)
	emittedGroup := make(map[groupKey]bool)
	for _, conn := range spec.Connections {
		if groupable(conn) {
			k := groupKey{toID: conn.ToID}
			groups[k] = append(groups[k], names[conn.FromID])
		}
	}

	for _, conn := range spec.Connections {
		if groupable(conn) {
			k := groupKey{toID: conn.ToID}
			if emittedGroup[k] {
				continue
			}
			emittedGroup[k] = true
			sources := groups[k]
			if len(sources) == 1 {
				fmt.Fprintf(b, "    %s >> %s\n", sources[0], names[conn.ToID])
			} else {
				fmt.Fprintf(b, "    [%s] >> %s\n", strings.Join(sources, ", "), names[conn.ToID])
			}
			continue
		}
		writeSingleEdge(b, conn, names)
	}
}

func groupable(conn datatypes.Connection) bool {
	dir := conn.Direction
	if dir == "" {
		dir = datatypes.ConnForward
	}
	return dir == datatypes.ConnForward && conn.Label == "" && len(conn.GraphvizAttrs) == 0
}

func writeSingleEdge(b *strings.Builder, conn datatypes.Connection, names map[string]string) {
	op := ">>"
	switch conn.Direction {
	case datatypes.ConnBackward:
		op = "<<"
	case datatypes.ConnBidirectional:
		op = "-"
	}
	from, to := names[conn.FromID], names[conn.ToID]
	if conn.Label == "" && len(conn.GraphvizAttrs) == 0 {
		fmt.Fprintf(b, "    %s %s %s\n", from, op, to)
		return
	}
	var args []string
	if conn.Label != "" {
		args = append(args, fmt.Sprintf("label=%s", pyStr(conn.Label)))
	}
	keys := make([]string, 0, len(conn.GraphvizAttrs))
	for k := range conn.GraphvizAttrs {
		if isPythonIdent(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%s", k, pyStr(conn.GraphvizAttrs[k])))
	}
	fmt.Fprintf(b, "    %s %s Edge(%s) %s %s\n", from, op, strings.Join(args, ", "), op, to)
}

// pyStr renders a double-quoted python string literal.
func pyStr(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// pyDict renders a dict literal with keys in sorted order.
func pyDict(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", pyStr(k), pyStr(m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// pyKwargs renders keyword arguments from an attribute map, dropping
// keys that are not valid python identifiers.
func pyKwargs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if isPythonIdent(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, pyStr(m[k]))
	}
	return strings.Join(parts, ", ")
}

// pythonIdent maps an arbitrary component id onto a safe identifier.
func pythonIdent(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" {
		s = "node"
	}
	if (s[0] >= '0' && s[0] <= '9') || pythonKeywords[s] {
		s = "n_" + s
	}
	return s
}

func isPythonIdent(s string) bool {
	if s == "" || pythonKeywords[s] {
		return false
	}
	for i, r := range s {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
		if !ok {
			return false
		}
	}
	return true
}
