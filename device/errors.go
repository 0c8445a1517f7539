package device

import "errors"

// Backend selection errors.
var (
	// ErrAPINotSet is returned when a resource is created while the active
	// render API is APINone.
	ErrAPINotSet = errors.New("device: active render API not set")

	// ErrUnknownAPI is returned for a render API outside the known set.
	ErrUnknownAPI = errors.New("device: unknown render API")

	// ErrBackendNotAvailable is returned when the selected backend is not
	// registered or cannot be loaded on this system.
	ErrBackendNotAvailable = errors.New("device: backend not available")

	// ErrNoAdapter is returned when a backend finds no usable adapter.
	ErrNoAdapter = errors.New("device: no suitable adapter found")
)

// Object errors.
var (
	// ErrDestroyed is returned when operating on a destroyed device or object.
	ErrDestroyed = errors.New("device: object destroyed")

	// ErrForeignObject is returned when an object created by another device
	// is passed to a device method.
	ErrForeignObject = errors.New("device: object belongs to another device")

	// ErrInvalidSize is returned for zero or oversized buffers and textures.
	ErrInvalidSize = errors.New("device: invalid size")

	// ErrOutOfRange is returned when an offset/size pair exceeds an object.
	ErrOutOfRange = errors.New("device: range out of bounds")

	// ErrNotRecording is returned when a recorder method requires an open
	// recording.
	ErrNotRecording = errors.New("device: recorder not recording")

	// ErrTimeout is returned when a fence wait expires.
	ErrTimeout = errors.New("device: wait timed out")
)
