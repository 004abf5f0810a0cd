// Package apppath resolves which on-disk application directory backs a
// session, using explicit input, persisted state, or a layered heuristic.
package apppath

import "strings"

// noiseWords are stripped from names before fuzzy comparison. Session titles
// and generated directory names differ mostly by these fillers.
var noiseWords = []string{"game", "app", "the"}

// separators are removed before fuzzy comparison.
var separators = []string{"-", "_", " "}

// NormalizeName reduces a session or directory name to a fuzzy comparison
// key: case-folded, separators removed, noise words removed.
//
// "HelicopterGame" and "helicopter-game" both normalize to "helicopter".
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	for _, sep := range separators {
		s = strings.ReplaceAll(s, sep, "")
	}
	for _, w := range noiseWords {
		s = strings.ReplaceAll(s, w, "")
	}
	return s
}

// nameVariants returns the exact-name forms tried for a session id: the raw
// id, its lowercased form, and its underscore-to-hyphen form. Duplicates are
// collapsed, preserving order.
func nameVariants(sessionID string) []string {
	variants := []string{
		sessionID,
		strings.ToLower(sessionID),
		strings.ReplaceAll(sessionID, "_", "-"),
	}

	seen := make(map[string]struct{}, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
