package textutil

import (
	"strings"
	"unicode"
)

var segmentReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeSegment makes name safe to use as a single path segment.
// Separators and colons become dashes, shell-hostile characters and control
// characters are dropped, and the dot segments "." and ".." become "_".
func SanitizeSegment(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, segmentReplacer.Replace(name))
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return "_"
	}
	return name
}
