// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// file paths or subprocess arguments. Using these validators prevents path
// traversal and keeps artifact filenames portable across filesystems.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxFilenameStem is the maximum length of a sanitized filename stem,
// excluding the extension. Long diagram titles are truncated to this.
const MaxFilenameStem = 80

// filenameAllowed reports whether r may appear in a served filename.
// The allowed set is deliberately narrow: [A-Za-z0-9._-].
func filenameAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}

// isInvisible reports whether r is a zero-width or otherwise non-printable
// rune. LLM output occasionally contains U+200B/U+200C/U+200D joiners and
// BOMs that survive into titles and then break artifact lookup.
func isInvisible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff', '\u2060':
		return true
	}
	return !unicode.IsPrint(r)
}

// SanitizeFilename converts an arbitrary title into a safe filename stem.
//
// The result contains only [A-Za-z0-9._-], has zero-width and non-printable
// runes removed (not replaced), is truncated to MaxFilenameStem runes, and
// is never empty: a title that sanitizes to nothing becomes "diagram".
//
// The same function must be applied on the serving path as well, since
// artifacts written by older versions may carry unsanitized names.
func SanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		if isInvisible(r) {
			continue
		}
		if filenameAllowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	// Collapse runs of underscores left behind by replacement, and runs
	// of dots: ".." would trip the traversal guard on the serving path.
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	out = strings.Trim(out, "._")
	if len(out) > MaxFilenameStem {
		out = out[:MaxFilenameStem]
		out = strings.Trim(out, "._")
	}
	if out == "" {
		out = "diagram"
	}
	return out
}

// IsCleanFilename reports whether name is already in sanitized form and
// carries no path separators. Serving handlers use this to distinguish a
// malformed request (400) from a traversal attempt (403).
func IsCleanFilename(name string) bool {
	if name == "" || len(name) > MaxFilenameStem+16 {
		return false
	}
	for _, r := range name {
		if !filenameAllowed(r) {
			return false
		}
	}
	// A clean name never starts with a dot (hidden files, "..").
	return name[0] != '.'
}

// IsTraversal reports whether name attempts to escape the serving
// directory: absolute paths, parent references, or embedded separators.
func IsTraversal(name string) bool {
	if strings.ContainsAny(name, `/\`) {
		return true
	}
	if filepath.IsAbs(name) {
		return true
	}
	return name == ".." || strings.Contains(name, "..")
}

// SafeJoin joins name onto baseDir and verifies the result stays inside
// baseDir. Returns an error for any name that resolves outside the base.
//
// Example:
//
//	path, err := validation.SafeJoin(outputDir, filename)
//	if err != nil {
//	    c.JSON(http.StatusForbidden, ...)
//	}
func SafeJoin(baseDir, name string) (string, error) {
	if IsTraversal(name) {
		return "", fmt.Errorf("path traversal rejected: %q", name)
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolving base dir: %w", err)
	}
	joined := filepath.Join(base, filepath.Clean("/"+name))
	rel, err := filepath.Rel(base, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base dir: %q", name)
	}
	return joined, nil
}
