package reservation

import (
	"errors"

	"github.com/iliyamo/event-seat-manager/internal/repository"
)

var (
	ErrSeatUnavailable       = errors.New("seat is locked by another user or already taken")
	ErrSeatTaken             = errors.New("seat is already taken")
	ErrEventFull             = errors.New("event is full")
	ErrDuplicateRegistration = errors.New("user is already registered for this event")
)

var (
	ErrEventNotFull     = errors.New("event still has free capacity")
	ErrAlreadyQueued    = errors.New("user is already on the waitlist")
	ErrWaitlistDisabled = errors.New("waitlist is disabled for this event")
	ErrNotQueued        = errors.New("user is not on the waitlist")
)

var (
	ErrInvalidState = errors.New("operation not allowed in current state")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
)

// Error codes shared with clients.
const (
	CodeSeatUnavailable       = "SEAT_UNAVAILABLE"
	CodeSeatTaken             = "SEAT_TAKEN"
	CodeEventFull             = "EVENT_FULL"
	CodeDuplicateRegistration = "DUPLICATE_REGISTRATION"
	CodeEventNotFull          = "EVENT_NOT_FULL"
	CodeAlreadyQueued         = "ALREADY_QUEUED"
	CodeWaitlistDisabled      = "WAITLIST_DISABLED"
	CodeNotQueued             = "NOT_QUEUED"
	CodeInvalidState          = "INVALID_STATE"
	CodeNotFound              = "NOT_FOUND"
	CodeValidation            = "VALIDATION_ERROR"
	CodeInternal              = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrSeatUnavailable, CodeSeatUnavailable},
	{ErrSeatTaken, CodeSeatTaken},
	{ErrEventFull, CodeEventFull},
	{ErrDuplicateRegistration, CodeDuplicateRegistration},
	{ErrEventNotFull, CodeEventNotFull},
	{ErrAlreadyQueued, CodeAlreadyQueued},
	{ErrWaitlistDisabled, CodeWaitlistDisabled},
	{ErrNotQueued, CodeNotQueued},
	{ErrInvalidState, CodeInvalidState},
	{ErrNotFound, CodeNotFound},
	{ErrValidation, CodeValidation},
}

// Code returns the client-facing code of err, or CodeInternal for errors
// outside the taxonomy.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// storeErr converts a missing event or record into ErrNotFound.
func storeErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
