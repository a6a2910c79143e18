package dom

import (
	"regexp"
	"strings"
	"unicode"
)

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// CollapseText strips non-printable characters and squashes every run of
// whitespace into a single space, for showing element text on one line.
func CollapseText(s string) string {
	s = removeNonPrintable(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
