package memento

import "errors"

var (
	// ErrInvalidInput indicates a timeline was requested over no snapshots
	ErrInvalidInput = errors.New("memento: invalid input")

	// ErrIndexOutOfRange indicates a search cursor outside the snapshot array
	ErrIndexOutOfRange = errors.New("memento: index out of range")

	// ErrNoTimestamp indicates no stamped snapshot exists in the searched direction
	ErrNoTimestamp = errors.New("memento: no time-stamped snapshot")
)
