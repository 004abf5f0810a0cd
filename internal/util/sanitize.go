// Package util provides shared helpers for the devserver CLI.
package util

import (
	"regexp"
	"strings"
)

var (
	// disallowedChars matches anything not in [A-Za-z0-9-_].
	disallowedChars = regexp.MustCompile(`[^A-Za-z0-9\-_]`)
	// multiHyphen collapses consecutive hyphens.
	multiHyphen = regexp.MustCompile(`-{2,}`)
)

// SanitizeDirName converts a session id to a filesystem-safe directory name.
//   - Replaces spaces with hyphens
//   - Strips all characters not in [A-Za-z0-9-_]
//   - Collapses consecutive hyphens
//   - Trims leading/trailing hyphens
//
// Case is preserved so generated app directories keep their display names.
//
// Example: "Helicopter Game (v2)" → "Helicopter-Game-v2"
func SanitizeDirName(name string) string {
	s := strings.ReplaceAll(name, " ", "-")
	s = disallowedChars.ReplaceAllString(s, "")
	s = multiHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}
