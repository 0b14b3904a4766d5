package workflow

import (
	"errors"

	"romimport/internal/queue"
)

// State is the aggregate processing state presentation layers bind to.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StatePaused     State = "paused"
)

// ConflictRecord describes an item waiting for a system choice.
type ConflictRecord struct {
	ItemID  int64
	Index   int
	URL     string
	Systems []string
}

// errItemRemoved aborts an item whose queue row was removed mid-flight.
var errItemRemoved = errors.New("item removed while processing")

// outcome is where the worker's steps left an item.
type outcome struct {
	status  queue.Status
	message string
	err     error
	// imported lists the files whose arrival may complete partial items.
	imported []string
	// constituents are the other source files folded into this item's title.
	constituents []string
}

func succeed(message string, imported ...string) outcome {
	return outcome{status: queue.StatusSuccess, message: message, imported: imported}
}

func fail(err error) outcome {
	return outcome{status: queue.StatusFailure, err: err}
}
