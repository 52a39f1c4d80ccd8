package util

import (
	"regexp"
	"strings"
)

var phoneJunk = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone strips whitespace and separators, keeping digits and a
// leading '+'. A "00" international prefix becomes "+".
func NormalizePhone(raw string) string {
	s := phoneJunk.ReplaceAllString(strings.TrimSpace(raw), "")
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if i := strings.LastIndex(s, "+"); i > 0 {
		s = "+" + strings.ReplaceAll(s, "+", "")
	}
	return s
}
