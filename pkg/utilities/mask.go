package utilities

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail keeps the first three characters and the domain so identifiers can
// be correlated in logs without being recorded in full.
// john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	if m := emailRegex.FindStringSubmatch(email); len(m) == 3 {
		return m[1] + "***" + m[2]
	}
	if strings.Contains(email, "@") {
		return "***@" + strings.SplitN(email, "@", 2)[1]
	}
	// usernames
	r := []rune(email)
	if len(r) <= 3 {
		return "***"
	}
	return string(r[:3]) + "***"
}
