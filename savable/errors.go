package savable

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedField is returned when a present field cannot be decoded
	// into the requested type (bad numeric text, wrong node kind, bad base64).
	ErrMalformedField = errors.New("malformed field")

	// ErrBufferConsistency is returned when a buffer's limit runs past its
	// backing storage during encode.
	ErrBufferConsistency = errors.New("buffer consistency")

	// ErrUnknownEnumValue is returned when an enum name is not one of the
	// allowed values.
	ErrUnknownEnumValue = errors.New("unknown enum value")

	// ErrUnknownType is returned when a type identifier is not registered,
	// its factory fails, or a value's type has no identifier.
	ErrUnknownType = errors.New("unknown type")

	// ErrWrongContainerSize is returned when a sized container declares a
	// different element count than it holds.
	ErrWrongContainerSize = errors.New("wrong container size")

	// ErrFieldReadFailure is returned when an object's own Read fails.
	ErrFieldReadFailure = errors.New("field read failure")

	// ErrTypeMismatch is returned when a decoded object is not of the type
	// the caller asked for.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrDepthExceeded is returned when a graph nests deeper than MaxDepth.
	ErrDepthExceeded = errors.New("max depth exceeded")

	// ErrCycle is returned when an object is reached again while it is
	// still being written.
	ErrCycle = errors.New("object graph cycle")

	// ErrReservedField is returned when an object writes a field whose name
	// the document format reserves.
	ErrReservedField = errors.New("reserved field name")

	// ErrCursor is returned on unbalanced cursor moves.
	ErrCursor = errors.New("cursor misuse")
)

// FieldError describes a failure on one field of one object.
//
// Kind is one of the Err* sentinels; errors.Is matches both Kind and the
// wrapped cause, so a nested failure keeps its original kind visible.
type FieldError struct {
	Kind  error
	Field string
	Path  string
	Type  string // type identifier of the nested object, when known
	Err   error
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString("savable: ")
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " %q", e.Field)
	}
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause.
func (e *FieldError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fieldErr(kind error, field, path string, cause error) *FieldError {
	return &FieldError{Kind: kind, Field: field, Path: path, Err: cause}
}

func malformed(field, path string, format string, args ...any) *FieldError {
	return fieldErr(ErrMalformedField, field, path, fmt.Errorf(format, args...))
}
