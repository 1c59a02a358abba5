package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrorKind is the machine-readable category of a domain error.
type ErrorKind string

const (
	KindInvalidStatusTransition ErrorKind = "InvalidStatusTransition"
	KindAlreadyDiscarded        ErrorKind = "AlreadyDiscarded"
	KindAnimalNotSellable       ErrorKind = "AnimalNotSellable"
	KindInsufficientQuantity    ErrorKind = "InsufficientQuantity"
	KindInvalidUnit             ErrorKind = "InvalidUnit"
	KindAlertNotPending         ErrorKind = "AlertNotPending"
	KindReasonTooShort          ErrorKind = "ReasonTooShort"
	KindSlaughterUnsupported    ErrorKind = "AnimalSlaughterUnsupportedForSpecies"
	KindConcurrentModification  ErrorKind = "ConcurrentModificationConflict"
	KindAnimalHasHistory        ErrorKind = "AnimalHasHistory"
	KindNotFound                ErrorKind = "NotFound"
	KindValidation              ErrorKind = "Validation"
)

// Error is a domain error. Two errors match under errors.Is when their kinds
// are equal and the target carries no message of its own.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports kind equality so callers can match against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrInvalidStatusTransition = &Error{Kind: KindInvalidStatusTransition}
	ErrAlreadyDiscarded        = &Error{Kind: KindAlreadyDiscarded}
	ErrAnimalNotSellable       = &Error{Kind: KindAnimalNotSellable}
	ErrInsufficientQuantity    = &Error{Kind: KindInsufficientQuantity}
	ErrInvalidUnit             = &Error{Kind: KindInvalidUnit}
	ErrAlertNotPending         = &Error{Kind: KindAlertNotPending}
	ErrReasonTooShort          = &Error{Kind: KindReasonTooShort}
	ErrSlaughterUnsupported    = &Error{Kind: KindSlaughterUnsupported}
	ErrConcurrentModification  = &Error{Kind: KindConcurrentModification}
	ErrAnimalHasHistory        = &Error{Kind: KindAnimalHasHistory}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrValidation              = &Error{Kind: KindValidation}
)

// NewError builds a domain error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound is shorthand for a NotFound error on the named entity.
func NotFound(entity, id string) *Error {
	return NewError(KindNotFound, "%s %s not found", entity, id)
}

// Invalid is shorthand for a Validation error.
func Invalid(format string, args ...any) *Error {
	return NewError(KindValidation, format, args...)
}

// KindOf extracts the domain kind from err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// MinReasonLength is the minimum number of characters a discard or decline reason must carry.
const MinReasonLength = 10

// NormalizeReason trims reason and enforces MinReasonLength.
func NormalizeReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if utf8.RuneCountInString(trimmed) < MinReasonLength {
		return "", NewError(KindReasonTooShort, "reason must be at least %d characters", MinReasonLength)
	}
	return trimmed, nil
}
