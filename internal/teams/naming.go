package teams

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	rawNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 \-]+$`)
	stdNamePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// CleanName trims a display name and collapses runs of whitespace.
func CleanName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// StdName is the channel-safe key for a display name: lowercase with
// whitespace runs replaced by single hyphens. "Code  Ninjas" and
// "code ninjas" share the key "code-ninjas".
func StdName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

// ValidName reports whether a cleaned display name is acceptable: at most
// maxLen characters of English letters, digits, spaces and hyphens, whose
// StdName is hyphen-separated alphanumeric words.
func ValidName(name string, maxLen int) bool {
	if name == "" || utf8.RuneCountInString(name) > maxLen {
		return false
	}
	return rawNamePattern.MatchString(name) && stdNamePattern.MatchString(StdName(name))
}
