// Package util provides the soft validation helpers used by the editor.
// None of these reject a write; callers log the result and carry on.
package util

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pitchside/playbook/pkg/core"
)

var (
	hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	labelPattern    = regexp.MustCompile(`^[\w .\-]*$`)
)

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsValidHexColor reports whether s is a #rgb or #rrggbb colour.
func IsValidHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// IsValidLabel reports whether s fits the label length and character set:
// word characters, space, hyphen and dot.
func IsValidLabel(s string) bool {
	return utf8.RuneCountInString(s) <= core.MaxLabelLength && labelPattern.MatchString(s)
}

// IsValidName reports whether a project name has 1..MaxNameLength runes once
// surrounding whitespace is removed.
func IsValidName(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= 1 && n <= core.MaxNameLength
}

// TruncateRunes shortens s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
