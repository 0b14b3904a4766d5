package queue

import (
	"errors"
	"fmt"

	"romimport/internal/services"
)

var (
	// ErrItemNotFound is returned when an operation targets an unknown item ID.
	ErrItemNotFound = errors.New("queue item not found")
	// ErrInvalidTransition is returned when the state machine rejects a status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	ItemID int64
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: item %d %s -> %s", ErrInvalidTransition, e.ItemID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ApplyFailure records err on the item as a failure outcome. The kind comes
// from the service markers err carries and the message from its details.
func ApplyFailure(item *Item, err error) {
	if item == nil || err == nil {
		return
	}
	details := services.Details(err)
	item.FailureKind = details.Kind
	item.ErrorMessage = err.Error()
}
