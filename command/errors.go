package command

import "errors"

// Command list errors.
var (
	// ErrNilDevice is returned when a list or pool is created without a device.
	ErrNilDevice = errors.New("command: nil device")

	// ErrInvalidState is returned for an illegal state transition.
	ErrInvalidState = errors.New("command: invalid state transition")

	// ErrListBusy is returned when resetting a list whose work is executing.
	ErrListBusy = errors.New("command: list is executing")
)

// Pool errors.
var (
	// ErrPoolExhausted is returned when no idle list is available.
	ErrPoolExhausted = errors.New("command: pool exhausted")

	// ErrNotCheckedOut is returned when recycling a list that was not
	// checked out from the pool.
	ErrNotCheckedOut = errors.New("command: list not checked out from this pool")

	// ErrListsOutstanding is returned by Close while lists are checked out.
	ErrListsOutstanding = errors.New("command: lists still checked out")

	// ErrPoolClosed is returned after Close.
	ErrPoolClosed = errors.New("command: pool closed")

	// ErrNotInitialized is returned before Init.
	ErrNotInitialized = errors.New("command: pool not initialized")
)
