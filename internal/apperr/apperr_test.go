package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesEnrichedCopies(t *testing.T) {
	enriched := ErrInsufficientBalance.WithReason("balance %d below %d", 10, 20)
	wrapped := fmt.Errorf("submit: %w", enriched)

	if !errors.Is(wrapped, ErrInsufficientBalance) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if errors.Is(wrapped, ErrCapacityExceeded) {
		t.Fatalf("expected no match against a different code")
	}
	if ErrInsufficientBalance.Reason != "insufficient balance" {
		t.Fatalf("expected sentinel reason untouched, got %q", ErrInsufficientBalance.Reason)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Validation("upi_id", "missing upi_id"), KindValidation},
		{fmt.Errorf("x: %w", ErrSelfAction), KindAuthorization},
		{ErrDuplicateReference, KindConflict},
		{Consistency("debit missing for withdrawal %d", 7), KindConsistency},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestValidationNamesField(t *testing.T) {
	err := Validation("ifsc", "missing ifsc")
	if !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected invalid_field code")
	}
	typed, ok := As(err)
	if !ok || typed.Field != "ifsc" {
		t.Fatalf("expected field ifsc, got %+v", typed)
	}
	if got := err.Error(); got != "invalid_field (ifsc): missing ifsc" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrConsistency.Wrap(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause reachable through Unwrap")
	}
	if !errors.Is(err, ErrConsistency) {
		t.Fatalf("expected consistency code")
	}
}
