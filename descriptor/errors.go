package descriptor

import "errors"

var (
	// ErrHeapExhausted is returned when a heap region has no free run of
	// the requested length.
	ErrHeapExhausted = errors.New("descriptor: heap exhausted")

	// ErrNoFrame is returned by frame allocations outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("descriptor: no frame in progress")

	// ErrInvalidAllocation is returned when freeing an allocation that was
	// not handed out by the heap or view manager, or was already freed.
	ErrInvalidAllocation = errors.New("descriptor: invalid allocation")

	// ErrOutOfRange is returned by Allocation.Slice for ranges past the end.
	ErrOutOfRange = errors.New("descriptor: range out of bounds")

	// ErrUnsupportedView is returned when a resource cannot back the
	// requested view kind.
	ErrUnsupportedView = errors.New("descriptor: unsupported view kind for resource")

	// ErrNilDevice is returned when a view manager is created without a device.
	ErrNilDevice = errors.New("descriptor: nil device")

	// ErrClosed is returned after ViewManager.Close.
	ErrClosed = errors.New("descriptor: view manager closed")
)
