package errors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeNotFound    ErrorType = "NOT_FOUND"
	ErrTypeSynthesis   ErrorType = "SYNTHESIS"
	ErrTypePersistence ErrorType = "PERSISTENCE"
	ErrTypeUpstream    ErrorType = "UPSTREAM"
	ErrTypeInternal    ErrorType = "INTERNAL"
)

// DomainError is the single error currency of the pipeline. Validation and
// NotFound map to client failures at the API edge; Synthesis, Persistence
// and Internal map to server failures. Upstream never reaches the caller as
// an error: the orchestrator degrades it to an empty result.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func Validation(message string, err error) *DomainError {
	return New(ErrTypeValidation, message, err)
}

func NotFound(message string, err error) *DomainError {
	return New(ErrTypeNotFound, message, err)
}

func Synthesis(message string, err error) *DomainError {
	return New(ErrTypeSynthesis, message, err)
}

func Persistence(message string, err error) *DomainError {
	return New(ErrTypePersistence, message, err)
}

func Upstream(message string, err error) *DomainError {
	return New(ErrTypeUpstream, message, err)
}

func Internal(message string, err error) *DomainError {
	return New(ErrTypeInternal, message, err)
}

// TypeOf reports the taxonomy type of err, or ErrTypeInternal when err is
// not a DomainError.
func TypeOf(err error) ErrorType {
	if de, ok := err.(*DomainError); ok {
		return de.Type
	}
	return ErrTypeInternal
}
