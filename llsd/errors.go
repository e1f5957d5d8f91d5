package llsd

import (
	"errors"
	"fmt"
)

// ErrKind classifies decode and conversion failures.
type ErrKind uint8

const (
	ErrTypeMismatch ErrKind = iota
	ErrTruncated
	ErrMalformed
	ErrEncoding
	ErrUnknownTag
	ErrUnterminated
	ErrDepthExceeded
	ErrUnsupported
	ErrDuplicateKey
	ErrRange
)

// String returns the kind name.
func (k ErrKind) String() string {
	switch k {
	case ErrTypeMismatch:
		return "type mismatch"
	case ErrTruncated:
		return "truncated"
	case ErrMalformed:
		return "malformed"
	case ErrEncoding:
		return "encoding error"
	case ErrUnknownTag:
		return "unknown tag"
	case ErrUnterminated:
		return "unterminated literal"
	case ErrDepthExceeded:
		return "depth exceeded"
	case ErrUnsupported:
		return "unsupported conversion"
	case ErrDuplicateKey:
		return "duplicate key"
	case ErrRange:
		return "out of range"
	default:
		return "unknown"
	}
}

// Error is the structured error returned by every decoder and extractor.
// Offset is the byte offset into the input (-1 when not applicable);
// Path localizes the fault inside a document (XML element path, map key,
// array index).
type Error struct {
	Kind   ErrKind
	Msg    string
	Offset int
	Path   string
}

func (e *Error) Error() string {
	s := "llsd: " + e.Kind.String() + ": " + e.Msg
	if e.Path != "" {
		s += " at " + e.Path
	}
	if e.Offset >= 0 {
		s += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	return s
}

// Is reports kind equality, so errors.Is(err, &Error{Kind: ErrTruncated})
// matches any truncation error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the ErrKind from an error chain.
func KindOf(err error) (ErrKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func newErr(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Offset: -1}
}

func (e *Error) at(offset int) *Error {
	e.Offset = offset
	return e
}

func (e *Error) in(path string) *Error {
	e.Path = path
	return e
}
