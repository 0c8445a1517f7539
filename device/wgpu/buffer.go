package wgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/device"
)

// buffer wraps a hal.Buffer. Host-visible buffers carry a shadow slice
// standing in for a persistent mapping, padded to the copy alignment.
type buffer struct {
	dev       *Device
	buf       hal.Buffer
	label     string
	size      uint64
	usage     gputypes.BufferUsage
	shadow    []byte
	native    device.Handle
	destroyed atomic.Bool
}

func (b *buffer) Size() uint64                { return b.size }
func (b *buffer) Usage() gputypes.BufferUsage { return b.usage }
func (b *buffer) Native() device.Handle       { return b.native }

func (b *buffer) Mapped() []byte {
	if b.shadow == nil || b.destroyed.Load() {
		return nil
	}
	return b.shadow[:b.size:b.size]
}

func (b *buffer) checkRange(offset, size uint64) error {
	if offset > b.size || size > b.size-offset {
		return fmt.Errorf("%w: [%d, %d) of buffer %q (%d bytes)",
			device.ErrOutOfRange, offset, offset+size, b.label, b.size)
	}
	return nil
}

// NewBuffer implements device.Device. Every buffer can be copied from and
// to, so uploads and readbacks work regardless of the requested usage.
func (d *Device) NewBuffer(desc *device.BufferDesc) (device.Buffer, error) {
	if desc == nil || desc.Size == 0 || desc.Size > maxBufferSize {
		return nil, device.ErrInvalidSize
	}
	if d.isDestroyed() {
		return nil, device.ErrDestroyed
	}
	size := device.AlignUp(desc.Size, copyAlignment)
	usage := desc.Usage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	halBuf, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	b := &buffer{
		dev:   d,
		buf:   halBuf,
		label: desc.Label,
		size:  desc.Size,
		usage: desc.Usage,
	}
	if desc.HostVisible {
		b.shadow = make([]byte, size)
	}
	b.native = d.handle(halBuf)
	d.log.Debug("wgpu: buffer created", "label", desc.Label, "size", size, "mapped", desc.HostVisible)
	return b, nil
}

// DestroyBuffer implements device.Device.
func (d *Device) DestroyBuffer(b device.Buffer) {
	wb, ok := b.(*buffer)
	if !ok || wb.dev != d {
		return
	}
	if wb.destroyed.CompareAndSwap(false, true) {
		d.hal.DestroyBuffer(wb.buf)
	}
}

// FlushMapped implements device.Device by writing the shadow range through
// the queue. The write is ordered before later submissions.
func (d *Device) FlushMapped(b device.Buffer, offset, size uint64) error {
	wb, err := d.buffer(b)
	if err != nil {
		return err
	}
	if wb.shadow == nil {
		return fmt.Errorf("wgpu: flush of unmapped buffer %q", wb.label)
	}
	if err := wb.checkRange(offset, size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	// Queue writes need 4-byte aligned offsets and sizes; widen the range.
	start := offset &^ (copyAlignment - 1)
	end := device.AlignUp(offset+size, copyAlignment)
	d.queue.WriteBuffer(wb.buf, start, wb.shadow[start:end])
	return nil
}

// ReadBuffer implements device.Device through a staging copy.
func (d *Device) ReadBuffer(b device.Buffer, offset uint64, dst []byte) error {
	wb, err := d.buffer(b)
	if err != nil {
		return err
	}
	if err := wb.checkRange(offset, uint64(len(dst))); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	if offset%copyAlignment != 0 {
		return fmt.Errorf("wgpu: readback offset %d not %d-byte aligned", offset, copyAlignment)
	}
	size := device.AlignUp(uint64(len(dst)), copyAlignment)
	if offset+size > device.AlignUp(wb.size, copyAlignment) {
		return device.ErrOutOfRange
	}

	staging, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: "rhi_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create readback buffer: %w", err)
	}
	defer d.hal.DestroyBuffer(staging)

	encoder, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rhi_readback"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("rhi_readback"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(wb.buf, staging, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	f, err := d.submit(cmdBuf)
	if err != nil {
		return err
	}
	if err := f.Wait(readbackTimeout); err != nil {
		return err
	}

	readback := make([]byte, size)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("wgpu: readback: %w", err)
	}
	copy(dst, readback)
	return nil
}

func (d *Device) buffer(b device.Buffer) (*buffer, error) {
	wb, ok := b.(*buffer)
	if !ok || wb.dev != d {
		return nil, device.ErrForeignObject
	}
	if wb.destroyed.Load() {
		return nil, device.ErrDestroyed
	}
	return wb, nil
}
