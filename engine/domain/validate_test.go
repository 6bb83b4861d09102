package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	got, err := ValidateQuery("  solar panel cleaning robot ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "solar panel cleaning robot" {
		t.Errorf("expected trimmed query, got %q", got)
	}
}

func TestValidateQuery_Empty(t *testing.T) {
	_, err := ValidateQuery("   ")
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "query" {
		t.Fatalf("expected ValidationError on query, got %v", err)
	}
}

func TestValidateQuery_TooLong(t *testing.T) {
	_, err := ValidateQuery(strings.Repeat("a", MaxQueryLength+1))
	if !errors.Is(err, ErrQueryTooLong) {
		t.Fatalf("expected ErrQueryTooLong, got %v", err)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := ValidateQuery(strings.Repeat("é", MaxQueryLength+1))
	if got := err.Error(); got != "invalid query: query longer than 2000 characters" {
		t.Fatalf("message = %q", got)
	}
	var ve *ValidationError
	errors.As(err, &ve)
	if ve.Value != strings.Repeat("é", 32)+"..." {
		t.Fatalf("logged value = %q", ve.Value)
	}
}
