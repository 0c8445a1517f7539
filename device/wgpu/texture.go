package wgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/device"
)

type texture struct {
	dev       *Device
	tex       hal.Texture
	width     uint32
	height    uint32
	mips      uint32
	format    gputypes.TextureFormat
	native    device.Handle
	destroyed atomic.Bool
}

func (t *texture) Width() uint32                  { return t.width }
func (t *texture) Height() uint32                 { return t.height }
func (t *texture) MipLevels() uint32              { return t.mips }
func (t *texture) Format() gputypes.TextureFormat { return t.format }
func (t *texture) Native() device.Handle          { return t.native }

// NewTexture implements device.Device.
func (d *Device) NewTexture(desc *device.TextureDesc) (device.Texture, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 ||
		desc.Width > maxTextureDimension || desc.Height > maxTextureDimension {
		return nil, device.ErrInvalidSize
	}
	if d.isDestroyed() {
		return nil, device.ErrDestroyed
	}
	mips := max(desc.MipLevels, 1)
	if mips > device.MipLevelCount(desc.Width, desc.Height) {
		return nil, fmt.Errorf("%w: %d mip levels for %dx%d", device.ErrInvalidSize, mips, desc.Width, desc.Height)
	}
	usage := desc.Usage | gputypes.TextureUsageCopyDst
	halTex, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: mips,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	t := &texture{
		dev:    d,
		tex:    halTex,
		width:  desc.Width,
		height: desc.Height,
		mips:   mips,
		format: desc.Format,
	}
	t.native = d.handle(halTex)
	return t, nil
}

// DestroyTexture implements device.Device.
func (d *Device) DestroyTexture(t device.Texture) {
	wt, ok := t.(*texture)
	if !ok || wt.dev != d {
		return
	}
	if wt.destroyed.CompareAndSwap(false, true) {
		d.hal.DestroyTexture(wt.tex)
	}
}

func (d *Device) texture(t device.Texture) (*texture, error) {
	wt, ok := t.(*texture)
	if !ok || wt.dev != d {
		return nil, device.ErrForeignObject
	}
	if wt.destroyed.Load() {
		return nil, device.ErrDestroyed
	}
	return wt, nil
}

// view is either a HAL texture view or a buffer binding range. WebGPU binds
// buffer ranges directly, so buffer views hold no HAL object.
type view struct {
	dev       *Device
	texView   hal.TextureView
	buf       hal.Buffer
	offset    uint64
	size      uint64
	native    device.Handle
	destroyed atomic.Bool
}

func (v *view) Native() device.Handle { return v.native }

// Binding returns the buffer range of a buffer view. ok is false for
// texture views.
func (v *view) Binding() (buf hal.Buffer, offset, size uint64, ok bool) {
	if v.buf == nil {
		return nil, 0, 0, false
	}
	return v.buf, v.offset, v.size, true
}

// NewView implements device.Device.
func (d *Device) NewView(desc *device.ViewDesc) (device.View, error) {
	if desc == nil || (desc.Buffer == nil) == (desc.Texture == nil) {
		return nil, fmt.Errorf("wgpu: view needs exactly one buffer or texture")
	}
	v := &view{dev: d}
	if desc.Buffer != nil {
		wb, err := d.buffer(desc.Buffer)
		if err != nil {
			return nil, err
		}
		size := desc.Size
		if size == 0 {
			if desc.Offset > wb.size {
				return nil, device.ErrOutOfRange
			}
			size = wb.size - desc.Offset
		}
		if err := wb.checkRange(desc.Offset, size); err != nil {
			return nil, err
		}
		v.buf, v.offset, v.size = wb.buf, desc.Offset, size
		v.native = d.handle(wb.buf)
		return v, nil
	}

	wt, err := d.texture(desc.Texture)
	if err != nil {
		return nil, err
	}
	tv, err := d.hal.CreateTextureView(wt.tex, &hal.TextureViewDescriptor{Label: desc.Label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture view %q: %w", desc.Label, err)
	}
	v.texView = tv
	v.native = d.handle(tv)
	return v, nil
}

// DestroyView implements device.Device.
func (d *Device) DestroyView(v device.View) {
	wv, ok := v.(*view)
	if !ok || wv.dev != d {
		return
	}
	if wv.destroyed.CompareAndSwap(false, true) && wv.texView != nil {
		d.hal.DestroyTextureView(wv.texView)
	}
}
