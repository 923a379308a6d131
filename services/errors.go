package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyGrouped participant already holds a table
	ErrAlreadyGrouped = errors.New("already part of a table")
	// ErrNotInGroup participant does not hold the requested table
	ErrNotInGroup = errors.New("not part of the table")
	// ErrRateLimited participant asked for help too often
	ErrRateLimited = errors.New("too many help requests")
)

// ValidationError a missing or malformed command argument. Raised before any
// side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("Argument <%s> not satisfied", e.Field)
	}
	return fmt.Sprintf("Failed parsing argument <%s>: %s", e.Field, e.Reason)
}

// PreconditionError the participant's membership state forbids the action.
// Raised before any side effect.
type PreconditionError struct {
	Err   error
	Label string
}

func (e *PreconditionError) Error() string {
	if e.Label == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Label)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// UserMessage renders err as the reply for a failed action. Transport
// failures name the action and invite a retry.
func UserMessage(action string, err error) string {
	var validation *ValidationError
	var precondition *PreconditionError

	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &precondition) && errors.Is(err, ErrAlreadyGrouped):
		return "You're already part of a team!"
	case errors.As(err, &precondition) && errors.Is(err, ErrNotInGroup):
		if precondition.Label == "" {
			return "You're not part of a team!"
		}
		return fmt.Sprintf("You're not part of '%s'!", precondition.Label)
	case errors.Is(err, ErrRateLimited):
		return "You've asked for help a lot recently, please wait a few minutes before asking again."
	default:
		return fmt.Sprintf("Command '%s' failed, please try again in a moment.", action)
	}
}

// IsUserError reports whether err is a validation or precondition failure,
// i.e. one that changed nothing and needs no error log.
func IsUserError(err error) bool {
	var validation *ValidationError
	var precondition *PreconditionError
	return errors.As(err, &validation) || errors.As(err, &precondition) || errors.Is(err, ErrRateLimited)
}
