// Package wgpu implements the explicit command-list backend over the
// gogpu/wgpu HAL.
//
// Two APIs are registered: APIVulkan opens the first discrete or integrated
// Vulkan adapter, APINoop opens the headless noop HAL device. A device owned
// by another component can be adopted with FromProvider.
//
// HAL buffers are not mapped persistently, so host-visible buffers keep a
// host shadow copy that FlushMapped writes through the queue.
package wgpu

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/rhi/device"
	"github.com/gogpu/rhi/internal/logging"
)

const (
	constantBufferAlignment = 256
	copyAlignment           = 4
	textureRowAlignment     = 256
	maxBufferSize           = 256 << 20
	maxTextureDimension     = 8192

	// readbackTimeout bounds the internal waits of ReadBuffer and Destroy.
	readbackTimeout = 5 * time.Second
)

func init() {
	device.Register(device.APIVulkan, func(opts device.Options) (device.Device, error) {
		return Open(device.APIVulkan, opts)
	})
	device.Register(device.APINoop, func(opts device.Options) (device.Device, error) {
		return Open(device.APINoop, opts)
	})
}

// Device wraps a HAL device and its queue.
type Device struct {
	api      device.API
	label    string
	log      *slog.Logger
	instance hal.Instance
	hal      hal.Device
	queue    hal.Queue
	external bool
	nextID   atomic.Uint64

	mu        sync.Mutex
	destroyed bool
	pending   map[*fence]struct{}
	last      *fence
}

var _ device.Device = (*Device)(nil)

// Open creates an instance for api, selects an adapter and opens a device.
func Open(api device.API, opts device.Options) (*Device, error) {
	var instance hal.Instance
	switch api {
	case device.APINoop:
		var backend noop.API
		inst, err := backend.CreateInstance(nil)
		if err != nil {
			return nil, fmt.Errorf("wgpu: create noop instance: %w", err)
		}
		instance = inst
	case device.APIVulkan:
		backend, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("%w: vulkan", device.ErrBackendNotAvailable)
		}
		inst, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create vulkan instance: %w", err)
		}
		instance = inst
	default:
		if err := api.Check(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s is not a wgpu backend", device.ErrBackendNotAvailable, api)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, device.ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := newDevice(api, openDev.Device, openDev.Queue, opts)
	d.instance = instance
	d.log.Info("wgpu: device opened", "api", api.String(), "adapter", selected.Info.Name)
	return d, nil
}

// FromProvider adopts the HAL device and queue of an external provider.
// The provider must expose HalDevice() any and HalQueue() any returning a
// hal.Device and a hal.Queue. The adopted device is not destroyed by
// Destroy; api tags the objects created through it.
func FromProvider(provider gpucontext.DeviceProvider, api device.API, opts device.Options) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := any(provider).(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	halDev, ok := hp.HalDevice().(hal.Device)
	if !ok || halDev == nil {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	if api != device.APINoop && api != device.APIVulkan {
		return nil, fmt.Errorf("%w: %s is not a wgpu backend", device.ErrUnknownAPI, api)
	}
	d := newDevice(api, halDev, queue, opts)
	d.external = true
	return d, nil
}

func newDevice(api device.API, dev hal.Device, queue hal.Queue, opts device.Options) *Device {
	return &Device{
		api:     api,
		label:   opts.Label,
		log:     logging.OrNop(opts.Logger),
		hal:     dev,
		queue:   queue,
		pending: make(map[*fence]struct{}),
	}
}

// HalDevice returns the underlying HAL device.
func (d *Device) HalDevice() any { return d.hal }

// HalQueue returns the underlying HAL queue.
func (d *Device) HalQueue() any { return d.queue }

func (d *Device) handle(object any) device.Handle {
	return device.NewHandle(d.api, d.nextID.Add(1), object)
}

// API implements device.Device.
func (d *Device) API() device.API { return d.api }

// Limits implements device.Device.
func (d *Device) Limits() device.Limits {
	return device.Limits{
		ConstantBufferAlignment: constantBufferAlignment,
		CopyAlignment:           copyAlignment,
		MaxBufferSize:           maxBufferSize,
		TextureRowAlignment:     textureRowAlignment,
		MaxTextureDimension2D:   maxTextureDimension,
	}
}

// NewRecorder implements device.Device. All command types record on the
// one device queue.
func (d *Device) NewRecorder(t device.CommandType) (device.Recorder, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("wgpu: invalid command type %v", t)
	}
	if d.isDestroyed() {
		return nil, device.ErrDestroyed
	}
	return &recorder{dev: d, typ: t}, nil
}

// submit sends one command buffer with a fresh fence. The fence owns cmdBuf
// from here on.
func (d *Device) submit(cmdBuf hal.CommandBuffer) (*fence, error) {
	halFence, err := d.hal.CreateFence()
	if err != nil {
		d.hal.FreeCommandBuffer(cmdBuf)
		return nil, fmt.Errorf("wgpu: create fence: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		d.hal.DestroyFence(halFence)
		d.hal.FreeCommandBuffer(cmdBuf)
		return nil, device.ErrDestroyed
	}
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, halFence, 1); err != nil {
		d.hal.DestroyFence(halFence)
		d.hal.FreeCommandBuffer(cmdBuf)
		return nil, fmt.Errorf("wgpu: submit: %w", err)
	}
	f := &fence{dev: d, fence: halFence, cmdBuf: cmdBuf}
	d.pending[f] = struct{}{}
	d.last = f
	return f, nil
}

// retire drops a signaled fence from the pending set.
func (d *Device) retire(f *fence) {
	d.mu.Lock()
	delete(d.pending, f)
	if d.last == f {
		d.last = nil
	}
	d.mu.Unlock()
}

// WaitIdle implements device.Device. Submissions complete in order, so
// waiting on the newest fence drains the queue.
func (d *Device) WaitIdle(timeout time.Duration) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return device.ErrDestroyed
	}
	last := d.last
	d.mu.Unlock()
	if last == nil {
		return nil
	}
	return last.Wait(timeout)
}

// Destroy waits for pending submissions, releases their fences and
// destroys the device unless it was adopted from a provider.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	pending := make([]*fence, 0, len(d.pending))
	for f := range d.pending {
		pending = append(pending, f)
	}
	d.mu.Unlock()

	for _, f := range pending {
		if err := f.Wait(readbackTimeout); err != nil {
			d.log.Warn("wgpu: pending submission at destroy", "err", err)
		}
	}
	if d.external {
		return
	}
	d.hal.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
	d.log.Info("wgpu: device destroyed", "api", d.api.String())
}

func (d *Device) isDestroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}
