// Package fault defines the error taxonomy shared by the parking
// engine. Callers branch on the Kind of an error rather than matching
// message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	// KindUnknown is the zero kind for errors raised outside the engine.
	KindUnknown Kind = iota
	// KindInvalidArgument marks malformed or missing caller input.
	KindInvalidArgument
	// KindNotFound marks a reference to an absent entity.
	KindNotFound
	// KindInvalidState marks an operation that is not legal in the
	// entity's current state, e.g. assigning an occupied spot.
	KindInvalidState
	// KindConflict marks a reservation interval overlap.
	KindConflict
	// KindIncompatible marks a vehicle class vs spot category mismatch.
	KindIncompatible
	// KindConfiguration marks a required collaborator that was never
	// wired. Fatal, not caller-correctable.
	KindConfiguration
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindInvalidArgument: "invalid_argument",
	KindNotFound:        "not_found",
	KindInvalidState:    "invalid_state",
	KindConflict:        "conflict",
	KindIncompatible:    "incompatible",
	KindConfiguration:   "configuration",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind alongside the message and optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Invalidf builds an InvalidArgument error.
func Invalidf(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Statef builds an InvalidState error.
func Statef(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Incompatiblef builds an Incompatible error.
func Incompatiblef(format string, args ...any) error {
	return &Error{Kind: KindIncompatible, Msg: fmt.Sprintf(format, args...)}
}

// Configf builds a Configuration error.
func Configf(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
