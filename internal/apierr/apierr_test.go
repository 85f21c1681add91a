package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsUnwrapsThroughFmtErrorf(t *testing.T) {
	base := NotFoundf("issue %s not found", "bd-1")
	wrapped := fmt.Errorf("loading issue: %w", base)

	got, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to find the wrapped *Error")
	}
	if got.Kind != NotFound {
		t.Fatalf("expected NotFound, got %s", got.Kind)
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if KindOf(errors.New("boom")) != Internal {
		t.Fatal("expected plain errors to map to Internal")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		NotFound:             404,
		Validation:           400,
		TransitionNotAllowed: 400,
		HardEnforcement:      400,
		CycleDetected:        400,
		TemplateParse:        400,
		Conflict:             409,
		MigrationFailed:      500,
		IOError:              500,
		Internal:             500,
	}
	for k, want := range cases {
		if got := HTTPStatus(k); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", k, got, want)
		}
	}
}

func TestCLIExitCodeMapping(t *testing.T) {
	userErrors := []Kind{NotFound, Validation, TransitionNotAllowed, HardEnforcement, CycleDetected, Conflict, TemplateParse}
	for _, k := range userErrors {
		if got := CLIExitCode(k); got != 1 {
			t.Errorf("CLIExitCode(%s) = %d, want 1", k, got)
		}
	}
	internalErrors := []Kind{MigrationFailed, IOError, Internal}
	for _, k := range internalErrors {
		if got := CLIExitCode(k); got != 2 {
			t.Errorf("CLIExitCode(%s) = %d, want 2", k, got)
		}
	}
}

func TestHardEnforcementErrorCarriesHints(t *testing.T) {
	err := HardEnforcementError("bug", "open", "in_progress", []string{"root_cause"}, []string{"wont_fix"})
	if err.Kind != HardEnforcement {
		t.Fatalf("expected HardEnforcement kind, got %s", err.Kind)
	}
	if len(err.MissingFields) != 1 || err.MissingFields[0] != "root_cause" {
		t.Fatalf("unexpected missing fields: %v", err.MissingFields)
	}
	if len(err.ValidTransitions) != 1 || err.ValidTransitions[0] != "wont_fix" {
		t.Fatalf("unexpected valid transitions: %v", err.ValidTransitions)
	}
}

func TestErrorMessageFallsBackToKind(t *testing.T) {
	e := &Error{Kind: Conflict}
	if e.Error() != string(Conflict) {
		t.Fatalf("expected fallback message %q, got %q", Conflict, e.Error())
	}
}
