// Package merge implements the deterministic deep merge that reconciles a
// validated patch into the canonical document. It is the only code path
// through which document state changes.
package merge

import (
	"fmt"

	"github.com/jonathan/resume-chat/internal/document"
	"github.com/jonathan/resume-chat/internal/patch"
)

// Apply merges a validated patch into the canonical document and returns a
// new document. It is pure: neither input is mutated.
//
// Per-key rules:
//  1. A patch sequence replaces the canonical sequence wholesale.
//  2. Object into object merges recursively, patch winning on leaf conflicts;
//     keys present only in the canonical side are preserved.
//  3. Any other pairing (scalar, or type mismatch) replaces outright.
//  4. Keys absent from the patch are left untouched; an explicit empty
//     sequence or empty string is a clear instruction, not an omission.
func Apply(doc document.Document, p patch.Patch) (document.Document, error) {
	if len(p) == 0 {
		return doc.Clone(), nil
	}

	base, err := doc.ToMap()
	if err != nil {
		return document.Document{}, fmt.Errorf("merge failed: %w", err)
	}

	merged := deepMerge(base, map[string]any(p))

	out, err := document.FromMap(merged)
	if err != nil {
		return document.Document{}, fmt.Errorf("merge failed: %w", err)
	}
	if err := out.Validate(); err != nil {
		return document.Document{}, fmt.Errorf("merge produced invalid document: %w", err)
	}
	return out, nil
}

// deepMerge merges src into dst without mutating either, returning a fresh
// map. Only object×object pairs recurse; everything else is replacement.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, sv := range src {
		dv, exists := out[k]
		if !exists {
			out[k] = sv
			continue
		}
		dm, dstIsObj := dv.(map[string]any)
		sm, srcIsObj := sv.(map[string]any)
		if dstIsObj && srcIsObj {
			out[k] = deepMerge(dm, sm)
			continue
		}
		out[k] = sv
	}
	return out
}
