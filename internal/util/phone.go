package util

import (
	"regexp"
	"strings"
)

// NormalizePhone tries to normalize user input into E.164-like format.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	re := regexp.MustCompile(`[^\d\+]+`)
	s = re.ReplaceAllString(s, "")

	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	} else if strings.HasPrefix(s, "9") && len(s) == 9 {
		s = "+56" + s
	} else if strings.HasPrefix(s, "56") {
		s = "+" + s
	}

	return s
}
