package constants

import (
	"strings"
)

type WritingStyle string

const (
	Professional WritingStyle = "professional"
	Casual       WritingStyle = "casual"
	Academic     WritingStyle = "academic"
	Creative     WritingStyle = "creative"
)

var allStyles = []WritingStyle{
	Professional,
	Casual,
	Academic,
	Creative,
}

func AllStyles() []WritingStyle {
	out := make([]WritingStyle, len(allStyles))
	copy(out, allStyles)
	return out
}

func StylesAsStringSlice() []string {
	result := make([]string, len(allStyles))
	for i, s := range allStyles {
		result[i] = string(s)
	}
	return result
}

// ParseStyle matches input exactly (after trimming) against the enum.
// Case is significant: the API contract only admits the lowercase identifiers.
func ParseStyle(input string) (WritingStyle, bool) {
	s := strings.TrimSpace(input)
	for _, st := range allStyles {
		if s == string(st) {
			return st, true
		}
	}
	return "", false
}

func (s WritingStyle) Valid() bool {
	_, ok := ParseStyle(string(s))
	return ok
}
