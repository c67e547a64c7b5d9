package common

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := Errorf(ErrCValidation, "age", "value %d is out of range", 200)

	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected error to match ErrValidation")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Errorf("Error should not match ErrConfiguration")
	}

	wrapped := fmt.Errorf("store add: %w", err)
	if !errors.Is(wrapped, ErrValidation) {
		t.Errorf("Expected wrapped error to match ErrValidation")
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("pattern mismatch")
	err := Wrap(ErrCValidation, "name", "invalid value", cause)

	msg := err.Error()
	for _, part := range []string{"ValidationError", `field "name"`, "invalid value", "pattern mismatch"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Expected message %q to contain %q", msg, part)
		}
	}

	if !errors.Is(err, cause) {
		t.Errorf("Expected error to unwrap to its cause")
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "warning", "error", "INFO"} {
		if _, err := ParseLogLevel(lvl); err != nil {
			t.Errorf("Expected level %s to be valid: %v", lvl, err)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Errorf("Expected error for invalid level")
	}
}
