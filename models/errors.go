package models

import (
	"errors"
)

// ErrorKind classifies store failures so callers can decide how to recover
// (re-prompt, report "nothing there", retry a flush) without string matching.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindPasswordRequired
	KindInvalidPassword
	KindPersistence
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPasswordRequired:
		return "password required"
	case KindInvalidPassword:
		return "invalid password"
	case KindPersistence:
		return "persistence failure"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Sentinels for errors.Is. Returned errors are *Error values carrying the
// note id and cause; they match the sentinel of the same kind.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPasswordRequired = &Error{Kind: KindPasswordRequired}
	ErrInvalidPassword  = &Error{Kind: KindInvalidPassword}
	ErrPersistence      = &Error{Kind: KindPersistence}
	ErrCanceled         = &Error{Kind: KindCanceled}
)

// ErrInvalidSalt is returned by DeriveKey when the salt is not SaltSize bytes.
var ErrInvalidSalt = errors.New("salt must be 16 bytes")

// Error is a store failure of a given kind.
type Error struct {
	Kind ErrorKind
	ID   NoteID
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.ID != "" {
		msg += ": note " + string(e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of id or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, id NoteID, cause error) *Error {
	return &Error{Kind: kind, ID: id, Err: cause}
}

// KindOf reports the kind of a store error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
