// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"strings"

	"github.com/diagramlab/diagramlab/pkg/validation"
)

// FilenameStem derives the artifact file stem from a diagram title and
// generation id. The title goes through the same sanitizer the serving
// path applies, so nothing the LLM puts into a title can influence where
// the artifact lands.
func FilenameStem(title, generationID string) string {
	id := generationID
	if len(id) > 8 {
		id = id[:8]
	}
	return validation.SanitizeFilename(title) + "_" + id
}

// forbiddenTokens reject user-submitted renderer code that reaches
// outside drawing a diagram. The execute endpoint runs code in a
// subprocess either way; this keeps obvious abuse from ever starting.
var forbiddenTokens = []struct {
	token  string
	advice string
}{
	{"import os", "remove the os import; renderer code only draws diagrams"},
	{"import sys", "remove the sys import; renderer code only draws diagrams"},
	{"import subprocess", "remove the subprocess import"},
	{"import socket", "remove the socket import"},
	{"import shutil", "remove the shutil import"},
	{"__import__", "remove the __import__ call"},
	{"open(", "remove the open() call; the renderer writes artifacts itself"},
	{"eval(", "remove the eval() call"},
	{"exec(", "remove the exec() call"},
}

// ValidationIssue is one problem found in submitted renderer code.
type ValidationIssue struct {
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidateCode statically checks user-submitted renderer code before it
// is offered to the execute endpoint. Returns the issues found; an empty
// slice means the code is acceptable.
func ValidateCode(code string) []ValidationIssue {
	var issues []ValidationIssue

	if !strings.Contains(code, "from diagrams import") && !strings.Contains(code, "import diagrams") {
		issues = append(issues, ValidationIssue{
			Message:    "code does not import the diagrams package",
			Suggestion: "start with: from diagrams import Diagram",
		})
	}
	if !strings.Contains(code, "Diagram(") {
		issues = append(issues, ValidationIssue{
			Message:    "code never constructs a Diagram",
			Suggestion: "wrap the nodes in: with Diagram(\"Title\", show=False):",
		})
	}

	for _, pair := range [][2]rune{{'(', ')'}, {'[', ']'}, {'{', '}'}} {
		if d := bracketDepth(code, pair[0], pair[1]); d != 0 {
			issues = append(issues, ValidationIssue{
				Message: fmt.Sprintf("unbalanced %c%c brackets", pair[0], pair[1]),
			})
		}
	}

	for _, f := range forbiddenTokens {
		if containsToken(code, f.token) {
			issues = append(issues, ValidationIssue{
				Message:    fmt.Sprintf("forbidden construct: %s", f.token),
				Suggestion: f.advice,
			})
		}
	}
	return issues
}

// bracketDepth counts open minus close, skipping string literals and
// comments well enough for validation purposes.
func bracketDepth(code string, opener, closer rune) int {
	depth := 0
	var inString rune
	inComment := false
	var prev rune
	for _, r := range code {
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
			}
		case inString != 0:
			if r == inString && prev != '\\' {
				inString = 0
			}
		case r == '"' || r == '\'':
			inString = r
		case r == '#':
			inComment = true
		case r == opener:
			depth++
		case r == closer:
			depth--
		}
		prev = r
	}
	return depth
}

// containsToken matches outside of string literals and comments.
func containsToken(code, token string) bool {
	for _, line := range strings.Split(code, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if strings.Contains(line, token) {
			return true
		}
	}
	return false
}
