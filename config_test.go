package rhi

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/rhi/command"
	"github.com/gogpu/rhi/device"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.API != APISoftware {
		t.Errorf("API = %v, want software", cfg.API)
	}
	if cfg.Pools.Copy != command.DefaultPoolSize {
		t.Errorf("Pools.Copy = %d, want %d", cfg.Pools.Copy, command.DefaultPoolSize)
	}
	if time.Duration(cfg.WaitTimeout) != command.DefaultWaitTimeout {
		t.Errorf("WaitTimeout = %v", time.Duration(cfg.WaitTimeout))
	}
	if h := cfg.Heaps.CBVSRVUAV; h.Size == 0 || h.Frame > h.Size {
		t.Errorf("CBV/SRV/UAV heap = %+v", h)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"default", func(*Config) {}, nil},
		{"api none", func(c *Config) { c.API = APINone }, nil},
		{"unknown api", func(c *Config) { c.API = API(9) }, device.ErrUnknownAPI},
		{"negative pool", func(c *Config) { c.Pools.Compute = -1 }, ErrInvalidConfig},
		{"negative cache", func(c *Config) { c.ViewCacheLimit = -5 }, ErrInvalidConfig},
		{"frame too large", func(c *Config) { c.Heaps.RTV = HeapSize{Size: 4, Frame: 8} }, ErrInvalidConfig},
		{"negative timeout", func(c *Config) { c.FenceTimeout = -1 }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API = APINoop
	cfg.Label = "round trip"
	cfg.Pools = PoolSizes{Graphics: 2, Compute: 1, Copy: 4}
	cfg.Heaps.Sampler = HeapSize{Size: 32, Frame: 8}
	cfg.ViewCacheLimit = 100
	cfg.WaitTimeout = Duration(3 * time.Second)
	cfg.FlushOnUpload = true

	for _, format := range []string{FormatTOML, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := cfg.Encode(&buf, format); err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			path := filepath.Join(t.TempDir(), "rhi."+format)
			if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
				t.Fatal(err)
			}
			got, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig error: %v\n%s", err, buf.String())
			}
			if got != cfg {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
			}
		})
	}
}

func TestDecodeConfigPartial(t *testing.T) {
	tests := []struct {
		format string
		data   string
	}{
		{FormatTOML, "api = \"vulkan\"\nwait_timeout = \"250ms\"\n\n[pools]\ncopy = 2\n"},
		{FormatYAML, "api: vulkan\nwait_timeout: 250ms\npools:\n  copy: 2\n"},
	}
	for _, tt := range tests {
		cfg, err := DecodeConfig(strings.NewReader(tt.data), tt.format)
		if err != nil {
			t.Fatalf("%s: DecodeConfig error: %v", tt.format, err)
		}
		if cfg.API != APIVulkan || cfg.Pools.Copy != 2 || time.Duration(cfg.WaitTimeout) != 250*time.Millisecond {
			t.Errorf("%s: decoded %+v", tt.format, cfg)
		}
		// Unset fields keep their defaults.
		if cfg.Pools.Graphics != command.DefaultPoolSize {
			t.Errorf("%s: Pools.Graphics = %d, want default", tt.format, cfg.Pools.Graphics)
		}
	}
}

func TestDecodeConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
	}{
		{"toml unknown api", FormatTOML, "api = \"d3d9\"\n"},
		{"yaml unknown api", FormatYAML, "api: d3d9\n"},
		{"toml unknown field", FormatTOML, "colour = 1\n"},
		{"yaml unknown field", FormatYAML, "colour: 1\n"},
		{"bad duration", FormatYAML, "wait_timeout: soon\n"},
		{"negative pool", FormatTOML, "[pools]\ncopy = -1\n"},
	}
	for _, tt := range tests {
		if _, err := DecodeConfig(strings.NewReader(tt.data), tt.format); err == nil {
			t.Errorf("%s: DecodeConfig succeeded", tt.name)
		}
	}

	if _, err := DecodeConfig(strings.NewReader(""), "ini"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("unknown format error = %v, want ErrUnknownFormat", err)
	}
	if _, err := LoadConfig("rhi.json"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("LoadConfig(.json) error = %v, want ErrUnknownFormat", err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig(missing) error = %v, want ErrNotExist", err)
	}

	cfg, err := DecodeConfig(strings.NewReader(""), FormatYAML)
	if err != nil || cfg != DefaultConfig() {
		t.Errorf("empty YAML = %+v, %v; want defaults", cfg, err)
	}
}
