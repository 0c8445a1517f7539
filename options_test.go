package rhi

import (
	"log/slog"
	"testing"

	"github.com/gogpu/rhi/device"
	"github.com/gogpu/rhi/device/software"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.cfg != DefaultConfig() {
		t.Error("default options do not carry DefaultConfig")
	}
	if o.api != nil || o.logger != nil || o.dev != nil {
		t.Error("default options set overrides")
	}
}

func TestOptionsOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API = APIVulkan
	cfg.Pools.Copy = 1

	o := defaultOptions()
	for _, opt := range []Option{WithAPI(APINoop), WithConfig(cfg)} {
		opt(&o)
	}
	if o.cfg.Pools.Copy != 1 {
		t.Error("WithConfig not applied")
	}
	// WithAPI overrides Config.API regardless of order.
	if o.api == nil || *o.api != APINoop {
		t.Errorf("api override = %v", o.api)
	}

	l := slog.Default()
	dev := software.New(device.Options{})
	defer dev.Destroy()
	WithLogger(l)(&o)
	WithDevice(dev)(&o)
	if o.logger != l || o.dev != dev {
		t.Error("WithLogger/WithDevice not applied")
	}
}
