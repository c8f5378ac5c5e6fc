// Copyright (c) 2026 Keyra. All rights reserved.
// Author: huy.tranquoc.dev@gmail.com

/*
Package username provides canonicalization for account usernames.

Usernames are unique, immutable keys: two visually identical strings must
never map to two different accounts. Canonicalization applies Unicode NFKC
normalization (collapsing compatibility variants such as full-width letters)
followed by case folding, so that "Alice", "alice" and "ａｌｉｃｅ" all
resolve to the same stored key.

The canonical form is what gets persisted and looked up; the service layer
computes it once on entry, before any store access.
*/
package username

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical form of a username: trimmed, NFKC
// normalized, and case folded.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	normalized := norm.NFKC.String(trimmed)
	return cases.Fold().String(normalized)
}
