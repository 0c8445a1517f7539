package rhi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/rhi/command"
	"github.com/gogpu/rhi/descriptor"
	"github.com/gogpu/rhi/device"
)

// API selects the native backend of a Context.
type API = device.API

// Backends.
const (
	APINone     = device.APINone
	APISoftware = device.APISoftware
	APINoop     = device.APINoop
	APIVulkan   = device.APIVulkan
)

// Duration is a time.Duration written as a Go duration string ("10s") in
// config files.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("rhi: duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// PoolSizes is the number of command lists per command type.
type PoolSizes struct {
	Graphics int `toml:"graphics" yaml:"graphics"`
	Compute  int `toml:"compute" yaml:"compute"`
	Copy     int `toml:"copy" yaml:"copy"`
}

// HeapSize sizes one descriptor heap.
type HeapSize struct {
	// Size is the total number of slots.
	Size uint32 `toml:"size" yaml:"size"`
	// Frame is the number of slots reserved for per-frame views.
	Frame uint32 `toml:"frame" yaml:"frame"`
}

// HeapSizes sizes every descriptor heap.
type HeapSizes struct {
	CBVSRVUAV HeapSize `toml:"cbv_srv_uav" yaml:"cbv_srv_uav"`
	Sampler   HeapSize `toml:"sampler" yaml:"sampler"`
	RTV       HeapSize `toml:"rtv" yaml:"rtv"`
	DSV       HeapSize `toml:"dsv" yaml:"dsv"`
}

// Config is the static configuration of a Context.
type Config struct {
	// API is the backend. It cannot change for the life of a Context.
	API API `toml:"api" yaml:"api"`

	// Label names the device in backend diagnostics.
	Label string `toml:"label,omitempty" yaml:"label,omitempty"`

	Pools PoolSizes `toml:"pools" yaml:"pools"`
	Heaps HeapSizes `toml:"heaps" yaml:"heaps"`

	// ViewCacheLimit is the soft limit of cached persistent views.
	// 0 means unlimited.
	ViewCacheLimit int `toml:"view_cache_limit" yaml:"view_cache_limit"`

	// WaitTimeout bounds completion waits without a deadline and upload
	// waits.
	WaitTimeout Duration `toml:"wait_timeout" yaml:"wait_timeout"`

	// FenceTimeout bounds the fence wait of each submission.
	FenceTimeout Duration `toml:"fence_timeout" yaml:"fence_timeout"`

	// FlushOnUpload drains the queue after every upload instead of waiting
	// for the upload's own submission.
	FlushOnUpload bool `toml:"flush_on_upload" yaml:"flush_on_upload"`
}

// DefaultConfig returns the configuration used when no Config is given:
// the software backend with default pool and heap sizes.
func DefaultConfig() Config {
	heap := func(k descriptor.HeapKind) HeapSize {
		hc := descriptor.DefaultHeapConfig(k)
		return HeapSize{Size: hc.Size, Frame: hc.Frame}
	}
	return Config{
		API: APISoftware,
		Pools: PoolSizes{
			Graphics: command.DefaultPoolSize,
			Compute:  command.DefaultPoolSize,
			Copy:     command.DefaultPoolSize,
		},
		Heaps: HeapSizes{
			CBVSRVUAV: heap(descriptor.HeapCBVSRVUAV),
			Sampler:   heap(descriptor.HeapSampler),
			RTV:       heap(descriptor.HeapRTV),
			DSV:       heap(descriptor.HeapDSV),
		},
		WaitTimeout:  Duration(command.DefaultWaitTimeout),
		FenceTimeout: Duration(command.DefaultFenceTimeout),
	}
}

// Validate reports every invalid field. APINone is accepted here and
// rejected when a Context is opened without a device.
func (c Config) Validate() error {
	var errs []error
	if c.API != APINone && !c.API.Valid() {
		errs = append(errs, fmt.Errorf("api: %w: %d", device.ErrUnknownAPI, int(c.API)))
	}
	for name, n := range map[string]int{
		"pools.graphics":   c.Pools.Graphics,
		"pools.compute":    c.Pools.Compute,
		"pools.copy":       c.Pools.Copy,
		"view_cache_limit": c.ViewCacheLimit,
	} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s: negative value %d", name, n))
		}
	}
	for name, h := range map[string]HeapSize{
		"heaps.cbv_srv_uav": c.Heaps.CBVSRVUAV,
		"heaps.sampler":     c.Heaps.Sampler,
		"heaps.rtv":         c.Heaps.RTV,
		"heaps.dsv":         c.Heaps.DSV,
	} {
		if h.Frame > h.Size {
			errs = append(errs, fmt.Errorf("%s: frame region %d larger than heap %d", name, h.Frame, h.Size))
		}
	}
	if c.WaitTimeout < 0 || c.FenceTimeout < 0 {
		errs = append(errs, errors.New("negative timeout"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) poolSizes() map[device.CommandType]int {
	return map[device.CommandType]int{
		device.CommandGraphics: c.Pools.Graphics,
		device.CommandCompute:  c.Pools.Compute,
		device.CommandCopy:     c.Pools.Copy,
	}
}

func (c Config) heapConfigs() map[descriptor.HeapKind]descriptor.HeapConfig {
	hc := func(h HeapSize) descriptor.HeapConfig {
		return descriptor.HeapConfig{Size: h.Size, Frame: h.Frame}
	}
	return map[descriptor.HeapKind]descriptor.HeapConfig{
		descriptor.HeapCBVSRVUAV: hc(c.Heaps.CBVSRVUAV),
		descriptor.HeapSampler:   hc(c.Heaps.Sampler),
		descriptor.HeapRTV:       hc(c.Heaps.RTV),
		descriptor.HeapDSV:       hc(c.Heaps.DSV),
	}
}

// Config file formats.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// FormatOf returns the config format of a file name by extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// LoadConfig reads a TOML or YAML config file, chosen by extension. Fields
// missing from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("rhi: load config: %w", err)
	}
	defer f.Close()

	cfg, err := DecodeConfig(f, format)
	if err != nil {
		return Config{}, fmt.Errorf("rhi: load config %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig decodes a config in the given format over DefaultConfig and
// validates it.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	cfg := DefaultConfig()
	var err error
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return Config{}, fmt.Errorf("rhi: decode %s config: %w", format, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes c in the given format.
func (c Config) Encode(w io.Writer, format string) error {
	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("rhi: encode toml config: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("rhi: encode yaml config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("rhi: encode yaml config: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
