// Package metaerr defines the structured error taxonomy shared by the rainmeta packages.
package metaerr

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Error() strings are human-readable and may evolve.
type Kind string

const (
	KindInvalidInput            Kind = "InvalidInput"
	KindCorruptMeta             Kind = "CorruptMeta"
	KindUnknownMagicNumber      Kind = "UnknownMagicNumber"
	KindUnknownContentType      Kind = "UnknownContentType"
	KindUnknownContentEncoding  Kind = "UnknownContentEncoding"
	KindUnknownContentLanguage  Kind = "UnknownContentLanguage"
	KindInflateFailed           Kind = "InflateFailed"
	KindNestedDocument          Kind = "NestedDocument"
	KindSequenceMustBeDocument  Kind = "SequenceMustBeDocument"
	KindEmptyInput              Kind = "EmptyInput"
	KindHashMismatch            Kind = "HashMismatch"
	KindValidator               Kind = "Validator"
	KindInvalidAuthoringMeta    Kind = "InvalidAuthoringMeta"
	KindNotFound                Kind = "NotFound"
	KindAggregateNetworkFailure Kind = "AggregateNetworkFailure"
)

// Error is the library's structured error type.
//
// RuleID is a stable identifier naming the violated invariant
// (e.g. META-CODEC-003, OperandBitOverlap). Message is for humans.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a structured error without a cause.
func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, ruleID, format string, args ...any) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a structured error carrying cause. A nil cause behaves like New.
func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
//
// The whole chain is searched, so a CorruptMeta wrapping an UnknownMagicNumber
// matches both kinds.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the Kind of the outermost structured error, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
