package rhi

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/rhi/command"
	"github.com/gogpu/rhi/descriptor"
	"github.com/gogpu/rhi/device"
	"github.com/gogpu/rhi/resource"
)

// Context owns a device, its command list pools and its view manager.
//
// A Context replaces process-wide state: every component that creates or
// binds resources receives it (or its Env) explicitly. The backend is fixed
// for the life of the Context.
//
// Context methods are safe for concurrent use.
type Context struct {
	cfg      Config
	dev      device.Device
	owned    bool
	log      *slog.Logger
	commands *command.Manager
	views    *descriptor.ViewManager

	mu     sync.Mutex
	closed bool
}

// NewContext opens the configured backend and builds the command list pools
// and the view manager on it.
//
// It fails with device.ErrAPINotSet when no backend is selected and no
// device is adopted, and with device.ErrBackendNotAvailable when the
// backend is not compiled in. Nothing is left open on failure.
func NewContext(opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg
	if o.api != nil {
		cfg.API = *o.api
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}

	dev, owned := o.dev, false
	if dev != nil {
		cfg.API = dev.API()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dev == nil {
		var err error
		dev, err = device.Open(cfg.API, device.Options{Label: cfg.Label, Logger: log})
		if err != nil {
			return nil, fmt.Errorf("rhi: %w", err)
		}
		owned = true
	}

	c := &Context{cfg: cfg, dev: dev, owned: owned, log: log}
	if err := c.init(); err != nil {
		if cerr := c.Close(); cerr != nil {
			log.Warn("rhi: close after failed init", "err", cerr)
		}
		return nil, err
	}
	log.Info("rhi: context opened", "api", cfg.API.String(), "adopted", !owned)
	return c, nil
}

func (c *Context) init() error {
	var err error
	c.commands, err = command.NewManager(c.dev, c.cfg.poolSizes(),
		command.WithLogger(c.log),
		command.WithWaitTimeout(time.Duration(c.cfg.WaitTimeout)),
		command.WithFenceTimeout(time.Duration(c.cfg.FenceTimeout)),
	)
	if err != nil {
		return fmt.Errorf("rhi: command pools: %w", err)
	}
	c.views, err = descriptor.NewViewManager(c.dev, descriptor.Config{
		Heaps:      c.cfg.heapConfigs(),
		CacheLimit: c.cfg.ViewCacheLimit,
		Logger:     c.log,
	})
	if err != nil {
		return fmt.Errorf("rhi: view manager: %w", err)
	}
	return nil
}

// API returns the backend of the Context.
func (c *Context) API() API { return c.cfg.API }

// Config returns the configuration the Context was created with.
func (c *Context) Config() Config { return c.cfg }

// Device returns the device.
func (c *Context) Device() device.Device { return c.dev }

// Commands returns the command list pools.
func (c *Context) Commands() *command.Manager { return c.commands }

// Views returns the view manager.
func (c *Context) Views() *descriptor.ViewManager { return c.views }

// Logger returns the logger of the Context.
func (c *Context) Logger() *slog.Logger { return c.log }

// Env returns the environment resource constructors need.
//
//	vb, err := resource.NewVertexBuffer(ctx.Env(), data, layout)
func (c *Context) Env() resource.Env {
	return resource.Env{
		Device:        c.dev,
		Commands:      c.commands,
		Views:         c.views,
		Logger:        c.log,
		FlushOnUpload: c.cfg.FlushOnUpload,
		WaitTimeout:   time.Duration(c.cfg.WaitTimeout),
	}
}

func (c *Context) waitTimeout() time.Duration {
	if c.cfg.WaitTimeout > 0 {
		return time.Duration(c.cfg.WaitTimeout)
	}
	return command.DefaultWaitTimeout
}

// WaitIdle blocks until every submission made so far has completed.
func (c *Context) WaitIdle() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.dev.WaitIdle(c.waitTimeout())
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears the Context down in dependency order: views, command pools,
// the device queue and finally the device itself when the Context opened
// it. Resources created from the Context must be destroyed first. Close is
// idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.views != nil {
		errs = append(errs, c.views.Close())
	}
	if c.commands != nil {
		errs = append(errs, c.commands.Close())
	}
	if err := c.dev.WaitIdle(c.waitTimeout()); err != nil {
		errs = append(errs, fmt.Errorf("rhi: drain queue: %w", err))
	}
	if c.owned {
		c.dev.Destroy()
	}
	err := errors.Join(errs...)
	if err != nil {
		c.log.Warn("rhi: context closed with errors", "err", err)
	} else {
		c.log.Info("rhi: context closed", "api", c.cfg.API.String())
	}
	return err
}
