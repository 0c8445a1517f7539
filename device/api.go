package device

import (
	"fmt"
	"strings"
)

// API identifies a native graphics backend.
// It is the active-backend selector consulted by every resource factory.
type API int

const (
	// APINone means no backend has been selected.
	APINone API = iota

	// APISoftware is the immediate-mode host memory backend.
	APISoftware

	// APINoop is the headless wgpu HAL device. Commands are accepted and
	// fences signal, but no GPU work happens.
	APINoop

	// APIVulkan is the wgpu HAL Vulkan backend.
	APIVulkan

	apiCount
)

// String returns the lowercase backend name.
func (a API) String() string {
	switch a {
	case APINone:
		return "none"
	case APISoftware:
		return "software"
	case APINoop:
		return "noop"
	case APIVulkan:
		return "vulkan"
	default:
		return fmt.Sprintf("API(%d)", int(a))
	}
}

// Valid reports whether a is a known, selectable backend.
func (a API) Valid() bool {
	return a > APINone && a < apiCount
}

// Check returns ErrAPINotSet for APINone and ErrUnknownAPI for values
// outside the closed set of backends.
func (a API) Check() error {
	switch {
	case a == APINone:
		return ErrAPINotSet
	case !a.Valid():
		return fmt.Errorf("%w: %d", ErrUnknownAPI, int(a))
	}
	return nil
}

// ParseAPI parses a backend name as produced by API.String.
func ParseAPI(s string) (API, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return APINone, nil
	case "software", "sw":
		return APISoftware, nil
	case "noop":
		return APINoop, nil
	case "vulkan", "vk":
		return APIVulkan, nil
	}
	return APINone, fmt.Errorf("%w: %q", ErrUnknownAPI, s)
}

// MarshalText implements encoding.TextMarshaler.
func (a API) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *API) UnmarshalText(text []byte) error {
	v, err := ParseAPI(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// CommandType is the kind of queue work a command list records.
type CommandType int

const (
	// CommandGraphics records draw, compute and copy work.
	CommandGraphics CommandType = iota
	// CommandCompute records compute and copy work.
	CommandCompute
	// CommandCopy records copy work only.
	CommandCopy

	commandTypeCount
)

// String returns the command type name.
func (t CommandType) String() string {
	switch t {
	case CommandGraphics:
		return "Graphics"
	case CommandCompute:
		return "Compute"
	case CommandCopy:
		return "Copy"
	default:
		return fmt.Sprintf("CommandType(%d)", int(t))
	}
}

// Valid reports whether t is one of the known command types.
func (t CommandType) Valid() bool {
	return t >= CommandGraphics && t < commandTypeCount
}

// CommandTypes lists every command type.
func CommandTypes() []CommandType {
	return []CommandType{CommandGraphics, CommandCompute, CommandCopy}
}
