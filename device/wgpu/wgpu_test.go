package wgpu

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/device"
)

func createNoopDevice(t *testing.T) *Device {
	t.Helper()
	d, err := Open(device.APINoop, device.Options{Label: t.Name()})
	if err != nil {
		t.Fatalf("Open(noop) failed: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

func TestOpenRejectsForeignAPI(t *testing.T) {
	if _, err := Open(device.APINone, device.Options{}); !errors.Is(err, device.ErrAPINotSet) {
		t.Errorf("Open(none) error = %v, want ErrAPINotSet", err)
	}
	if _, err := Open(device.APISoftware, device.Options{}); !errors.Is(err, device.ErrBackendNotAvailable) {
		t.Errorf("Open(software) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistered(t *testing.T) {
	if !device.IsRegistered(device.APINoop) || !device.IsRegistered(device.APIVulkan) {
		t.Fatal("wgpu backends not registered")
	}
	dev, err := device.Open(device.APINoop, device.Options{})
	if err != nil {
		t.Fatalf("device.Open(noop) error: %v", err)
	}
	defer dev.Destroy()
	if dev.API() != device.APINoop {
		t.Errorf("API() = %v, want noop", dev.API())
	}
}

func TestBufferLifecycle(t *testing.T) {
	d := createNoopDevice(t)

	cb, err := d.NewBuffer(&device.BufferDesc{Label: "cb", Size: 256, Usage: gputypes.BufferUsageUniform, HostVisible: true})
	if err != nil {
		t.Fatalf("NewBuffer error: %v", err)
	}
	if len(cb.Mapped()) != 256 {
		t.Errorf("len(Mapped()) = %d, want 256", len(cb.Mapped()))
	}
	if cb.Usage() != gputypes.BufferUsageUniform {
		t.Errorf("Usage() = %v, want requested usage", cb.Usage())
	}
	if _, ok := cb.Native().Object().(hal.Buffer); !ok {
		t.Errorf("Native().Object() = %T, want hal.Buffer", cb.Native().Object())
	}
	if cb.Native().API() != device.APINoop {
		t.Errorf("Native().API() = %v, want noop", cb.Native().API())
	}

	copy(cb.Mapped(), []byte{1, 2, 3})
	if err := d.FlushMapped(cb, 1, 2); err != nil {
		t.Errorf("FlushMapped error: %v", err)
	}
	if err := d.FlushMapped(cb, 250, 10); !errors.Is(err, device.ErrOutOfRange) {
		t.Errorf("FlushMapped out of range error = %v, want ErrOutOfRange", err)
	}

	odd, err := d.NewBuffer(&device.BufferDesc{Size: 6, HostVisible: true})
	if err != nil {
		t.Fatalf("NewBuffer(6) error: %v", err)
	}
	if len(odd.Mapped()) != 6 {
		t.Errorf("len(Mapped()) = %d, want 6", len(odd.Mapped()))
	}
	if err := d.FlushMapped(odd, 0, 6); err != nil {
		t.Errorf("FlushMapped of unaligned buffer error: %v", err)
	}

	d.DestroyBuffer(cb)
	d.DestroyBuffer(cb)
	d.DestroyBuffer(odd)
	if cb.Mapped() != nil {
		t.Error("Mapped() not nil after destroy")
	}
	if err := d.FlushMapped(cb, 0, 4); !errors.Is(err, device.ErrDestroyed) {
		t.Errorf("FlushMapped after destroy error = %v, want ErrDestroyed", err)
	}
}

func TestRecorderSubmit(t *testing.T) {
	d := createNoopDevice(t)

	src, _ := d.NewBuffer(&device.BufferDesc{Size: 64, HostVisible: true})
	dst, _ := d.NewBuffer(&device.BufferDesc{Size: 64, Usage: gputypes.BufferUsageVertex})
	defer d.DestroyBuffer(src)
	defer d.DestroyBuffer(dst)

	r, err := d.NewRecorder(device.CommandCopy)
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}
	if _, err := r.Submit(); err == nil {
		t.Error("Submit before End succeeded")
	}
	if err := r.Begin("upload"); err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	if err := r.Begin("again"); err == nil {
		t.Error("nested Begin succeeded")
	}
	if _, ok := r.Native().Object().(hal.CommandEncoder); !ok {
		t.Errorf("Native().Object() = %T, want hal.CommandEncoder", r.Native().Object())
	}
	if err := r.CopyBuffer(src, dst, 0, 0, 6); err == nil {
		t.Error("unaligned copy accepted")
	}
	if err := r.CopyBuffer(src, dst, 0, 0, 64); err != nil {
		t.Fatalf("CopyBuffer error: %v", err)
	}
	if err := r.End(); err != nil {
		t.Fatalf("End error: %v", err)
	}
	f, err := r.Submit()
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !r.Native().IsZero() {
		t.Error("Native() not zero after Submit")
	}
	if err := f.Wait(time.Second); err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if err := f.Wait(time.Second); err != nil {
		t.Errorf("second Wait error: %v", err)
	}
	if err := d.WaitIdle(time.Second); err != nil {
		t.Errorf("WaitIdle error: %v", err)
	}

	if err := r.Begin("discarded"); err != nil {
		t.Fatal(err)
	}
	r.Discard()
	if err := r.Begin("reopened"); err != nil {
		t.Errorf("Begin after Discard error: %v", err)
	}
	r.Discard()
}

func TestTextureUpload(t *testing.T) {
	d := createNoopDevice(t)

	tex, err := d.NewTexture(&device.TextureDesc{
		Label:     "albedo",
		Width:     4,
		Height:    4,
		MipLevels: 3,
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Usage:     gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("NewTexture error: %v", err)
	}
	defer d.DestroyTexture(tex)
	if _, err := d.NewTexture(&device.TextureDesc{Width: 4, Height: 4, MipLevels: 4}); !errors.Is(err, device.ErrInvalidSize) {
		t.Errorf("too many mips error = %v, want ErrInvalidSize", err)
	}

	staging, _ := d.NewBuffer(&device.BufferDesc{Size: 4 * 256, HostVisible: true})
	defer d.DestroyBuffer(staging)

	r, _ := d.NewRecorder(device.CommandGraphics)
	if err := r.Begin("texture"); err != nil {
		t.Fatal(err)
	}
	for level := range uint32(3) {
		if err := r.CopyBufferToTexture(staging, 0, 256, tex, level); err != nil {
			t.Fatalf("CopyBufferToTexture(level %d) error: %v", level, err)
		}
	}
	if err := r.CopyBufferToTexture(staging, 0, 256, tex, 3); !errors.Is(err, device.ErrOutOfRange) {
		t.Errorf("level 3 error = %v, want ErrOutOfRange", err)
	}
	if err := r.End(); err != nil {
		t.Fatal(err)
	}
	f, err := r.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Wait(time.Second); err != nil {
		t.Fatal(err)
	}

	v, err := d.NewView(&device.ViewDesc{Label: "albedo_srv", Texture: tex})
	if err != nil {
		t.Fatalf("NewView error: %v", err)
	}
	if _, ok := v.Native().Object().(hal.TextureView); !ok {
		t.Errorf("view object = %T, want hal.TextureView", v.Native().Object())
	}
	d.DestroyView(v)
}

func TestBufferView(t *testing.T) {
	d := createNoopDevice(t)

	buf, _ := d.NewBuffer(&device.BufferDesc{Size: 512, Usage: gputypes.BufferUsageStorage})
	defer d.DestroyBuffer(buf)

	v, err := d.NewView(&device.ViewDesc{Buffer: buf, Offset: 256, Writable: true})
	if err != nil {
		t.Fatalf("NewView error: %v", err)
	}
	_, off, size, ok := v.(*view).Binding()
	if !ok || off != 256 || size != 256 {
		t.Errorf("Binding() = %d, %d, %v; want 256, 256, true", off, size, ok)
	}
	d.DestroyView(v)
}

type fakeProvider struct {
	dev   hal.Device
	queue hal.Queue
}

func (p fakeProvider) Device() gpucontext.Device             { return nil }
func (p fakeProvider) Queue() gpucontext.Queue               { return nil }
func (p fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (p fakeProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }
func (p fakeProvider) HalDevice() any                        { return p.dev }
func (p fakeProvider) HalQueue() any                         { return p.queue }

func TestFromProvider(t *testing.T) {
	owner := createNoopDevice(t)

	adopted, err := FromProvider(fakeProvider{dev: owner.hal, queue: owner.queue}, device.APINoop, device.Options{})
	if err != nil {
		t.Fatalf("FromProvider error: %v", err)
	}
	buf, err := adopted.NewBuffer(&device.BufferDesc{Size: 16})
	if err != nil {
		t.Fatalf("NewBuffer on adopted device error: %v", err)
	}
	adopted.DestroyBuffer(buf)
	adopted.Destroy()

	// The owner's device must survive the adopter's Destroy.
	if _, err := owner.NewBuffer(&device.BufferDesc{Size: 16}); err != nil {
		t.Errorf("owner NewBuffer after adopter Destroy error: %v", err)
	}

	if _, err := FromProvider(fakeProvider{}, device.APINoop, device.Options{}); err == nil {
		t.Error("FromProvider with nil HAL objects succeeded")
	}
}
