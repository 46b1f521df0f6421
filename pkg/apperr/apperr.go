// Package apperr defines the error kinds the ledger reports to its callers.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation            Kind = "validation"
	KindNoStructure           Kind = "no_structure"
	KindStructureNotEffective Kind = "structure_not_effective"
	KindInsufficientFunds     Kind = "insufficient_funds"
	KindInvalidState          Kind = "invalid_state"
	KindAlreadyPaid           Kind = "already_paid"
	KindNotFound              Kind = "not_found"
	KindUnauthorized          Kind = "unauthorized"
	KindForbidden             Kind = "forbidden"
)

// Error is a domain failure with a machine-readable kind. Fields carries one
// message per invalid input field for validation errors.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newf(KindInvalidState, format, args...)
}

func AlreadyPaid(format string, args ...any) *Error {
	return newf(KindAlreadyPaid, format, args...)
}

func NoStructure(format string, args ...any) *Error {
	return newf(KindNoStructure, format, args...)
}

func StructureNotEffective(format string, args ...any) *Error {
	return newf(KindStructureNotEffective, format, args...)
}

func InsufficientFunds(format string, args ...any) *Error {
	return newf(KindInsufficientFunds, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

// Validation collects field errors so a caller can report all of them at once.
type Validation struct {
	fields map[string]string
}

// Add records msg for field. The first message recorded for a field wins.
func (v *Validation) Add(field, msg string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, ok := v.fields[field]; !ok {
		v.fields[field] = msg
	}
}

// Check records msg for field when ok is false.
func (v *Validation) Check(ok bool, field, msg string) {
	if !ok {
		v.Add(field, msg)
	}
}

// Err returns nil when no field failed.
func (v *Validation) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: v.fields}
}

// Invalid is a shortcut for a validation error on a single field.
func Invalid(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: map[string]string{field: msg}}
}

// KindOf reports the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
