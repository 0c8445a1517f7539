package shader

import "errors"

var (
	// ErrInvalidSPIRV is returned for malformed SPIR-V modules.
	ErrInvalidSPIRV = errors.New("shader: invalid SPIR-V")

	// ErrNoEntryPoint is returned when a module has no entry point for the
	// requested stage.
	ErrNoEntryPoint = errors.New("shader: no entry point for stage")

	// ErrDuplicateSlot is returned when two blocks of one stage share a
	// (bind point, bind space).
	ErrDuplicateSlot = errors.New("shader: duplicate register block slot")
)
