// Package apperr defines the business error taxonomy shared by the wallet core.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups error codes by how callers are expected to react.
type Kind string

// Error kinds.
const (
	KindValidation          Kind = "validation"
	KindAuthorization       Kind = "authorization"
	KindCapacityExceeded    Kind = "capacity_exceeded"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindConsistency         Kind = "consistency"
	KindInternal            Kind = "internal"
)

// Error is a typed rejection with a stable machine-readable code.
type Error struct {
	Kind   Kind   // Taxonomy bucket.
	Code   string // Stable machine-readable code.
	Field  string // Offending field for validation errors.
	Reason string // Human-readable reason.
	Err    error  // Wrapped cause, if any.
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Field != "" {
		b.WriteString(" (")
		b.WriteString(e.Field)
		b.WriteString(")")
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so sentinels compare equal to enriched copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Sentinels. Use errors.Is against these; enrich copies with With* helpers.
var (
	ErrInvalidAmount        = &Error{Kind: KindValidation, Code: "invalid_amount", Field: "amount", Reason: "invalid amount"}
	ErrInvalidField         = &Error{Kind: KindValidation, Code: "invalid_field", Reason: "invalid field"}
	ErrInvalidAction        = &Error{Kind: KindValidation, Code: "invalid_action", Field: "action", Reason: "unknown action"}
	ErrPermissionDenied     = &Error{Kind: KindAuthorization, Code: "permission_denied", Reason: "permission denied"}
	ErrSelfAction           = &Error{Kind: KindAuthorization, Code: "self_action", Reason: "actor is the beneficiary of this request"}
	ErrManagerInactive      = &Error{Kind: KindAuthorization, Code: "manager_inactive", Reason: "manager is inactive"}
	ErrNotOwner             = &Error{Kind: KindAuthorization, Code: "not_owner", Reason: "request belongs to another user"}
	ErrUserDisabled         = &Error{Kind: KindAuthorization, Code: "user_disabled", Reason: "user is disabled"}
	ErrCapacityExceeded     = &Error{Kind: KindCapacityExceeded, Code: "capacity_exceeded", Reason: "manager capacity exceeded"}
	ErrInsufficientBalance  = &Error{Kind: KindInsufficientBalance, Code: "insufficient_balance", Reason: "insufficient balance"}
	ErrDuplicateReference   = &Error{Kind: KindConflict, Code: "duplicate_reference", Reason: "reference already recorded"}
	ErrInvalidTransition    = &Error{Kind: KindConflict, Code: "invalid_transition", Reason: "transition not allowed"}
	ErrAlreadyAssigned      = &Error{Kind: KindConflict, Code: "already_assigned", Reason: "vip user already assigned"}
	ErrHasActiveAssignments = &Error{Kind: KindConflict, Code: "has_active_assignments", Reason: "manager still has active assignments"}
	ErrNotFound             = &Error{Kind: KindNotFound, Code: "not_found", Reason: "not found"}
	ErrUnknownUser          = &Error{Kind: KindNotFound, Code: "unknown_user", Field: "user_id", Reason: "user does not exist"}
	ErrNotAssigned          = &Error{Kind: KindNotFound, Code: "not_assigned", Reason: "vip user is not assigned to this manager"}
	ErrConsistency          = &Error{Kind: KindConsistency, Code: "consistency", Reason: "ledger and withdrawal state disagree"}
)

// Validation builds a validation error naming the violated field.
func Validation(field, reason string) *Error {
	return &Error{Kind: KindValidation, Code: ErrInvalidField.Code, Field: field, Reason: reason}
}

// NotFound builds a not-found error for the named entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Code: ErrNotFound.Code, Field: entity, Reason: entity + " not found"}
}

// Consistency builds a consistency error describing the breached invariant.
func Consistency(format string, args ...any) *Error {
	return &Error{Kind: KindConsistency, Code: ErrConsistency.Code, Reason: fmt.Sprintf(format, args...)}
}

// WithReason returns a copy of e with a new reason.
func (e *Error) WithReason(format string, args ...any) *Error {
	cp := *e
	cp.Reason = fmt.Sprintf(format, args...)
	return &cp
}

// WithField returns a copy of e naming field.
func (e *Error) WithField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// As extracts the typed error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
