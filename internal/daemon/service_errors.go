package daemon

import (
	"errors"
	"fmt"

	"hostexec/internal/execerr"
)

type ServiceErrorKind string

const (
	ServiceErrorInvalid     ServiceErrorKind = "invalid"
	ServiceErrorNotFound    ServiceErrorKind = "not_found"
	ServiceErrorUnavailable ServiceErrorKind = "unavailable"
	ServiceErrorConflict    ServiceErrorKind = "conflict"
	ServiceErrorTimeout     ServiceErrorKind = "timeout"
)

type ServiceError struct {
	Kind    ServiceErrorKind
	Message string
	Err     error
	Partial *execerr.Partial
}

func (e *ServiceError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func invalidError(message string, err error) *ServiceError {
	return &ServiceError{Kind: ServiceErrorInvalid, Message: message, Err: err}
}

func notFoundError(message string, err error) *ServiceError {
	return &ServiceError{Kind: ServiceErrorNotFound, Message: message, Err: err}
}

func unavailableError(message string, err error) *ServiceError {
	return &ServiceError{Kind: ServiceErrorUnavailable, Message: message, Err: err}
}

// toServiceError classifies component errors for the API.
func toServiceError(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	var execErr *execerr.Error
	if !errors.As(err, &execErr) {
		return unavailableError("", err)
	}
	out := &ServiceError{Message: execErr.Error(), Err: execErr, Partial: execErr.Partial}
	switch execErr.Kind {
	case execerr.KindInvalid, execerr.KindSpawn:
		out.Kind = ServiceErrorInvalid
	case execerr.KindNotFound:
		out.Kind = ServiceErrorNotFound
	case execerr.KindInvalidState:
		out.Kind = ServiceErrorConflict
	case execerr.KindTimeout:
		out.Kind = ServiceErrorTimeout
	default:
		out.Kind = ServiceErrorUnavailable
	}
	return out
}
