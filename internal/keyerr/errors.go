// Package keyerr defines the error kinds shared by the descriptor codec and
// the key serializer.
//
// Every decode failure carries exactly one Kind so callers can tell
// malformed input apart from an unknown type, and both apart from a
// storage-layer not-found (which is never a keyerr.Error).
package keyerr

import (
	"errors"
	"fmt"
)

// Kind categorizes codec and serializer failures.
type Kind string

const (
	// MalformedDescriptor indicates invalid bracket or pipe structure in a
	// type descriptor string, or a descriptor whose arity and arguments
	// disagree.
	MalformedDescriptor Kind = "MALFORMED_DESCRIPTOR"

	// UnresolvedModule indicates the module named by a descriptor could not
	// be loaded.
	UnresolvedModule Kind = "UNRESOLVED_MODULE"

	// UnresolvedType indicates a name that does not resolve in its module.
	UnresolvedType Kind = "UNRESOLVED_TYPE"

	// UnmappedType indicates a lookup-table naming strategy has no alias
	// for the type (or no type for the alias).
	UnmappedType Kind = "UNMAPPED_TYPE"

	// MalformedWireFormat indicates a wire string with a missing separator,
	// an odd-length escape run or a wrong segment count.
	MalformedWireFormat Kind = "MALFORMED_WIRE_FORMAT"
)

// Sentinels for use with errors.Is. They match any *Error of the same kind.
var (
	ErrMalformedDescriptor = &Error{Kind: MalformedDescriptor}
	ErrUnresolvedModule    = &Error{Kind: UnresolvedModule}
	ErrUnresolvedType      = &Error{Kind: UnresolvedType}
	ErrUnmappedType        = &Error{Kind: UnmappedType}
	ErrMalformedWireFormat = &Error{Kind: MalformedWireFormat}
)

// Error is a codec or serializer failure.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Input is the offending string (descriptor, type name or wire), if any.
	Input string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// New creates an Error of the given kind.
func New(kind Kind, input, format string, args ...any) *Error {
	return &Error{Kind: kind, Input: input, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, input string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Input: input, Message: fmt.Sprintf(format, args...), Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Input != "" {
		msg += fmt.Sprintf(" (input=%q)", e.Input)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Input == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
// Uses errors.As to handle wrapped errors.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsMalformed reports whether err is a syntax failure (descriptor or wire)
// as opposed to a resolution failure.
func IsMalformed(err error) bool {
	return Is(err, MalformedDescriptor) || Is(err, MalformedWireFormat)
}

// IsUnknownType reports whether err is a resolution failure: the input was
// well-formed but names a module, type or alias that is not known.
func IsUnknownType(err error) bool {
	return Is(err, UnresolvedModule) || Is(err, UnresolvedType) || Is(err, UnmappedType)
}
