package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the parent of every user-correctable input error.
var ErrValidation = errors.New("validation failed")

var (
	// ErrAuthFailed is returned when the access PIN does not match.
	ErrAuthFailed = validation("invalid PIN")
	// ErrNameRequired is returned when a session is started without a user name.
	ErrNameRequired = validation("user name is required")
	// ErrInvalidCount is returned when fewer than one question is requested.
	ErrInvalidCount = validation("question count must be at least 1")
	// ErrNoValidRows is returned when an upload contains no acceptable row.
	ErrNoValidRows = validation("no valid questions found in CSV")
	// ErrStalePosition is returned when an answer targets a question that was already answered.
	ErrStalePosition = validation("answer does not match the current question")
)

var (
	// ErrEmptyPool indicates no question matches the requested subject.
	ErrEmptyPool = errors.New("no questions found for subject")
	// ErrNoActiveSession is returned when a session-bound call has no session.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrSessionComplete is returned when a question is requested or answered past the end.
	ErrSessionComplete = errors.New("quiz session already complete")
	// ErrSessionInProgress is returned when finalizing before every question is answered.
	ErrSessionInProgress = errors.New("quiz session still in progress")
	// ErrOptionLookup flags an option index with no option behind it in stored data.
	ErrOptionLookup = errors.New("option index out of range")
)

type validationError struct{ msg string }

func (e *validationError) Error() string        { return e.msg }
func (e *validationError) Is(target error) bool { return target == ErrValidation }

func validation(msg string) error { return &validationError{msg: msg} }

// Validationf builds an ad-hoc validation error that still matches ErrValidation.
func Validationf(format string, args ...any) error {
	return validation(fmt.Sprintf(format, args...))
}
