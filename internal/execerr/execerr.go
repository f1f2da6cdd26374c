// Package execerr defines the error kinds shared by the runner, the job
// registry, the history log and the interactive session.
package execerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindSpawn        Kind = "spawn"
	KindWait         Kind = "wait"
	KindTimeout      Kind = "timeout"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindIO           Kind = "io"
	KindInvalid      Kind = "invalid"
)

// Partial holds whatever output was collected before a call was aborted.
type Partial struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
	Partial *Partial
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Spawn(op string, err error) *Error {
	return New(KindSpawn, op, "failed to start command", err)
}

func Wait(op string, err error) *Error {
	return New(KindWait, op, "failed waiting for command", err)
}

func Timeout(op, message string) *Error {
	return New(KindTimeout, op, message, nil)
}

func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message, nil)
}

func InvalidState(op, message string) *Error {
	return New(KindInvalidState, op, message, nil)
}

func IO(op, message string, err error) *Error {
	return New(KindIO, op, message, err)
}

func Invalid(op, message string) *Error {
	return New(KindInvalid, op, message, nil)
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var execErr *Error
	if !errors.As(err, &execErr) || execErr == nil {
		return "", false
	}
	return execErr.Kind, true
}

func Is(err error, kind Kind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}
