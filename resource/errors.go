package resource

import "errors"

var (
	// ErrNilDevice is returned when an Env has no device.
	ErrNilDevice = errors.New("resource: nil device")

	// ErrNoCommands is returned when an upload needs a command list source
	// and the Env has none.
	ErrNoCommands = errors.New("resource: no command list source")

	// ErrNilSource is returned when the source data of a write or upload is nil.
	ErrNilSource = errors.New("resource: nil source data")

	// ErrOutOfRange is returned when a write exceeds the buffer.
	ErrOutOfRange = errors.New("resource: write out of range")

	// ErrDestroyed is returned when using a destroyed resource.
	ErrDestroyed = errors.New("resource: resource destroyed")

	// ErrLayoutMismatch is returned when vertex data is not a whole number
	// of layout strides.
	ErrLayoutMismatch = errors.New("resource: vertex data does not match layout stride")

	// ErrUnknownParameter is returned by SetParameter for names the register
	// block does not declare.
	ErrUnknownParameter = errors.New("resource: unknown block parameter")

	// ErrInvalidPixels is returned for pixel buffers whose size does not
	// match width, height and channel count.
	ErrInvalidPixels = errors.New("resource: invalid pixel buffer")
)
