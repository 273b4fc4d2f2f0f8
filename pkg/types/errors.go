package types

import "errors"

// ErrorKind classifies a rejected command. Every kind is recoverable by the caller.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindNotFound     ErrorKind = "not_found"
	KindRateLimited  ErrorKind = "rate_limited"
	KindInternal     ErrorKind = "internal"
)

// Error is a classified error. Sentinels below are compared with errors.Is
// and may be wrapped with fmt.Errorf("%w: ...") to add detail.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ARCHITECTURAL DISCOVERY: Specific error types enable proper error handling
// and user-friendly error messages throughout the system
var (
	ErrUnauthorized        = &Error{KindUnauthorized, "not authorized for this action"}
	ErrInvalidSecret       = &Error{KindUnauthorized, "invalid instructor secret"}
	ErrInvalidName         = &Error{KindValidation, "name must be 2-20 characters"}
	ErrInvalidPollSpec     = &Error{KindValidation, "invalid poll"}
	ErrPollMismatch        = &Error{KindValidation, "answer does not match the active poll"}
	ErrInvalidOption       = &Error{KindValidation, "answer is not one of the poll options"}
	ErrEmptyMessage        = &Error{KindValidation, "message text cannot be empty"}
	ErrInvalidPayload      = &Error{KindValidation, "invalid event payload"}
	ErrUnknownEvent        = &Error{KindValidation, "unknown event"}
	ErrNameTaken           = &Error{KindConflict, "name is already taken"}
	ErrPollInProgress      = &Error{KindConflict, "a poll is already in progress"}
	ErrAlreadyIdentified   = &Error{KindConflict, "connection already holds a role in this session"}
	ErrNoActivePoll        = &Error{KindNotFound, "no active poll"}
	ErrParticipantNotFound = &Error{KindNotFound, "participant not found"}
	ErrRateLimited         = &Error{KindRateLimited, "sending messages too fast"}
	ErrInternal            = &Error{KindInternal, "internal error"}
)

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindInternal
}
