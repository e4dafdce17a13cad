// Package apperr classifies the failures surfaced by the catalog core.
//
// Every error returned by the lifecycle manager and the relationship engine
// matches exactly one of ErrValidation, ErrNotFound or ErrIO under errors.Is.
// Callers map the class onto a transport status; the underlying cause stays
// reachable through errors.Unwrap and errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input rejected before any storage access.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced entity that does not exist at read time.
	ErrNotFound = errors.New("not found")
	// ErrIO marks a failed storage call.
	ErrIO = errors.New("io error")
)

// Error carries the class of a failure together with where it happened.
type Error struct {
	Op     string // operation, e.g. "relations.ToggleFavorite"
	Class  error  // one of ErrValidation, ErrNotFound, ErrIO
	Entity string // entity involved, in singular form
	ID     string // identifier involved, if any
	Msg    string
	// Partial is set when some writes of a multi-write operation committed
	// before the failure.
	Partial bool
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Class != nil:
		b.WriteString(e.Class.Error())
	}
	if e.Entity != "" || e.ID != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Entity, e.ID)
	}
	if e.Partial {
		b.WriteString(" [partially applied]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the class of e.
func (e *Error) Is(target error) bool {
	return e.Class != nil && target == e.Class
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds an ErrValidation error.
func Validation(op, format string, args ...any) error {
	return &Error{Op: op, Class: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound error naming the missing entity.
func NotFound(op, entity, id string) error {
	return &Error{Op: op, Class: ErrNotFound, Entity: entity, ID: id, Msg: "not found"}
}

// IO wraps a storage failure. Errors that are already classified pass
// through unchanged so that the original class survives re-wrapping.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Op: op, Class: ErrIO, Msg: "storage failure", Err: err}
}

// PartialIO wraps a storage failure that happened after an earlier write of
// the same operation had already committed.
func PartialIO(op, entity, id string, err error) error {
	return &Error{Op: op, Class: ErrIO, Entity: entity, ID: id, Msg: "storage failure", Partial: true, Err: err}
}

// IsPartial reports whether err records a partially applied operation.
func IsPartial(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Partial
}
