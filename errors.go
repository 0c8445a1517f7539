package rhi

import "errors"

var (
	// ErrInvalidConfig is returned by Config.Validate and NewContext for
	// configurations with invalid fields.
	ErrInvalidConfig = errors.New("rhi: invalid config")

	// ErrUnknownFormat is returned for config files that are neither TOML
	// nor YAML.
	ErrUnknownFormat = errors.New("rhi: unknown config format")

	// ErrClosed is returned when using a closed Context.
	ErrClosed = errors.New("rhi: context closed")
)
