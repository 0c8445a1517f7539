package rhi

import (
	"log/slog"

	"github.com/gogpu/rhi/device"
)

// Option configures a Context during creation.
//
// Example:
//
//	// Software backend with default sizes
//	ctx, err := rhi.NewContext()
//
//	// Vulkan, configured from a file
//	cfg, err := rhi.LoadConfig("rhi.toml")
//	ctx, err := rhi.NewContext(rhi.WithConfig(cfg), rhi.WithAPI(rhi.APIVulkan))
type Option func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	cfg    Config
	api    *API
	logger *slog.Logger
	dev    device.Device
}

func defaultOptions() contextOptions {
	return contextOptions{cfg: DefaultConfig()}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override single fields.
func WithConfig(cfg Config) Option {
	return func(o *contextOptions) {
		o.cfg = cfg
	}
}

// WithAPI selects the backend, overriding Config.API.
func WithAPI(api API) Option {
	return func(o *contextOptions) {
		o.api = &api
	}
}

// WithLogger sets the logger of the Context and every component it creates.
// Without it the process default from SetLogger at creation time is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *contextOptions) {
		o.logger = l
	}
}

// WithDevice adopts an existing device instead of opening one for
// Config.API. The Context does not destroy an adopted device on Close.
//
// Example:
//
//	dev, err := wgpu.FromProvider(provider, rhi.APIVulkan, device.Options{})
//	ctx, err := rhi.NewContext(rhi.WithDevice(dev))
func WithDevice(dev device.Device) Option {
	return func(o *contextOptions) {
		o.dev = dev
	}
}
