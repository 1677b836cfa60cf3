// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolver

import (
	"fmt"

	"github.com/diagramlab/diagramlab/services/diagram/datatypes"
	"github.com/diagramlab/diagramlab/services/diagram/symbols"
)

// ResolutionError reports a component that could not be mapped to any
// renderer class. The payload is user-actionable: it lists the nearest
// candidates and what the relevant module actually exposes.
type ResolutionError struct {
	Provider    datatypes.Provider   `json:"provider"`
	TypeID      string               `json:"type_id"`
	ComponentID string               `json:"component_id,omitempty"`
	Suggestions []symbols.Suggestion `json:"suggestions,omitempty"`
	Available   map[string][]string  `json:"available_classes,omitempty"`
	Hint        string               `json:"hint,omitempty"`
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("no renderer symbol for type %q (provider %s)", e.TypeID, e.Provider)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf("; closest match: %s", e.Suggestions[0].Class)
	}
	return msg
}

// InputRejectedError reports input that does not describe a cloud
// architecture. Returned by the gate before any LLM call is made.
type InputRejectedError struct {
	Reason string `json:"reason"`
}

func (e *InputRejectedError) Error() string {
	return "input rejected: " + e.Reason
}
