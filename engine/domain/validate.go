package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryLength bounds the query text sent to the embedding model.
const MaxQueryLength = 2000

// ValidateQuery checks a user search query and returns the trimmed text.
func ValidateQuery(query string) (string, error) {
	text := strings.TrimSpace(query)
	if text == "" {
		return "", NewValidationError("query", query, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return "", NewValidationError("query", prefix(text, 32)+"...", ErrQueryTooLong)
	}
	return text, nil
}

func prefix(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
