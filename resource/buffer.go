package resource

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/rhi/command"
	"github.com/gogpu/rhi/descriptor"
	"github.com/gogpu/rhi/device"
	"github.com/gogpu/rhi/layout"
	"github.com/gogpu/rhi/shader"
)

const copySrcUsage = gputypes.BufferUsageCopySrc

// buffer is the state shared by every buffer resource.
type buffer struct {
	env       Env
	id        uuid.UUID
	label     string
	size      uint64 // requested size
	buf       device.Buffer
	destroyed atomic.Bool
}

// ID returns the process-unique resource identity.
func (b *buffer) ID() uuid.UUID { return b.id }

// Size returns the allocated size in bytes, which includes alignment
// padding.
func (b *buffer) Size() uint64 {
	if b.buf == nil {
		return 0
	}
	return b.buf.Size()
}

// RequestedSize returns the size asked for at creation.
func (b *buffer) RequestedSize() uint64 { return b.size }

// DeviceBuffer returns the backend buffer, or nil after Destroy.
func (b *buffer) DeviceBuffer() device.Buffer {
	if b.destroyed.Load() {
		return nil
	}
	return b.buf
}

// Native returns the backend handle.
func (b *buffer) Native() device.Handle {
	if b.destroyed.Load() {
		return device.Handle{}
	}
	return b.buf.Native()
}

// Destroyed reports whether Destroy has been called.
func (b *buffer) Destroyed() bool { return b.destroyed.Load() }

// Destroy purges the views of the buffer and releases the backend buffer.
// Only the first call has an effect.
func (b *buffer) Destroy() {
	b.destroy(nil)
}

// destroy purges the views, runs unmap if set, then releases the backend
// buffer.
func (b *buffer) destroy(unmap func()) {
	if !b.destroyed.CompareAndSwap(false, true) {
		return
	}
	b.env.release(b.id)
	if unmap != nil {
		unmap()
	}
	b.env.Device.DestroyBuffer(b.buf)
	b.env.logger().Debug("resource: buffer destroyed", "label", b.label, "id", b.id)
}

func (b *buffer) init(env *Env, label string, size uint64, buf device.Buffer) {
	b.env = *env
	b.id = uuid.New()
	b.label = label
	b.size = size
	b.buf = buf
}

// newDeviceLocal creates a device-local buffer filled with data through a
// staging buffer and a copy list. Nothing created survives a failure.
func newDeviceLocal(env *Env, label string, data []byte, usage gputypes.BufferUsage) (device.Buffer, error) {
	if err := env.check(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNilSource
	}
	if env.Commands == nil {
		return nil, ErrNoCommands
	}
	size := device.AlignUp(uint64(len(data)), env.Device.Limits().CopyAlignment)
	if size == 0 {
		return nil, fmt.Errorf("resource: %s: %w", label, device.ErrInvalidSize)
	}

	staging, err := env.staging(label, size, data)
	if err != nil {
		return nil, err
	}
	defer env.Device.DestroyBuffer(staging)

	dst, err := env.Device.NewBuffer(&device.BufferDesc{
		Label: label,
		Size:  size,
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create %s: %w", label, err)
	}
	err = env.submitCopy(label, func(l *command.List) error {
		return l.CopyBuffer(staging, dst, 0, 0, size)
	})
	if err != nil {
		env.Device.DestroyBuffer(dst)
		return nil, err
	}

	env.logger().Debug("resource: buffer uploaded", "label", label, "size", len(data), "allocated", size)
	return dst, nil
}

// VertexBuffer is a device-local vertex buffer with its element layout.
type VertexBuffer struct {
	buffer
	layout layout.BufferLayout
}

var _ descriptor.BufferResource = (*VertexBuffer)(nil)

// NewVertexBuffer uploads vertex data laid out as l. The data length must
// be a multiple of the layout stride when the layout is not empty.
func NewVertexBuffer(env Env, data []byte, l layout.BufferLayout) (*VertexBuffer, error) {
	if stride := l.Stride(); stride > 0 && len(data)%int(stride) != 0 {
		return nil, fmt.Errorf("%w: %d bytes, stride %d", ErrLayoutMismatch, len(data), stride)
	}
	buf, err := newDeviceLocal(&env, "vertex buffer", data, gputypes.BufferUsageVertex)
	if err != nil {
		return nil, err
	}
	vb := &VertexBuffer{layout: l}
	vb.init(&env, "vertex buffer", uint64(len(data)), buf)
	return vb, nil
}

// Layout returns the vertex layout.
func (vb *VertexBuffer) Layout() layout.BufferLayout { return vb.layout }

// VertexCount returns the number of vertices, or 0 for an empty layout.
func (vb *VertexBuffer) VertexCount() uint32 {
	stride := vb.layout.Stride()
	if stride == 0 {
		return 0
	}
	return uint32(vb.size / uint64(stride))
}

// Liveness implements descriptor.Collectable.
func (vb *VertexBuffer) Liveness() func() bool { return descriptor.WeakLiveness(vb) }

// IndexFormat is the width of the indices of an IndexBuffer.
type IndexFormat uint8

// Index formats.
const (
	IndexUint16 IndexFormat = iota
	IndexUint32
)

// Size returns the byte size of one index.
func (f IndexFormat) Size() int {
	if f == IndexUint16 {
		return 2
	}
	return 4
}

// String returns the format name.
func (f IndexFormat) String() string {
	if f == IndexUint16 {
		return "uint16"
	}
	return "uint32"
}

// IndexBuffer is a device-local buffer of 16- or 32-bit indices.
type IndexBuffer struct {
	buffer
	format IndexFormat
	count  uint32
}

var _ descriptor.BufferResource = (*IndexBuffer)(nil)

// NewIndexBuffer uploads indices. The element type selects the format.
func NewIndexBuffer[T uint16 | uint32](env Env, indices []T) (*IndexBuffer, error) {
	if indices == nil {
		return nil, ErrNilSource
	}
	var zero T
	format := IndexUint32
	if _, ok := any(zero).(uint16); ok {
		format = IndexUint16
	}
	data := make([]byte, 0, len(indices)*format.Size())
	for _, i := range indices {
		if format == IndexUint16 {
			data = binary.LittleEndian.AppendUint16(data, uint16(i))
		} else {
			data = binary.LittleEndian.AppendUint32(data, uint32(i))
		}
	}
	buf, err := newDeviceLocal(&env, "index buffer", data, gputypes.BufferUsageIndex)
	if err != nil {
		return nil, err
	}
	ib := &IndexBuffer{format: format, count: uint32(len(indices))}
	ib.init(&env, "index buffer", uint64(len(data)), buf)
	return ib, nil
}

// Format returns the index format.
func (ib *IndexBuffer) Format() IndexFormat { return ib.format }

// Count returns the number of indices.
func (ib *IndexBuffer) Count() uint32 { return ib.count }

// Liveness implements descriptor.Collectable.
func (ib *IndexBuffer) Liveness() func() bool { return descriptor.WeakLiveness(ib) }

// ConstantBuffer is a persistently mapped uniform buffer. Its size is
// rounded up to the device constant buffer alignment.
//
// Writes through SetData, SetParameter or the Mapped slice are not
// synchronized; concurrent writers must be serialized by the caller.
type ConstantBuffer struct {
	buffer
	mapped atomic.Pointer[[]byte]
	block  *shader.RegisterBlock
}

var _ descriptor.BufferResource = (*ConstantBuffer)(nil)

// NewConstantBuffer creates a mapped constant buffer of at least size bytes.
func NewConstantBuffer(env Env, size uint64) (*ConstantBuffer, error) {
	if err := env.check(); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("resource: constant buffer: %w", device.ErrInvalidSize)
	}
	aligned := device.AlignUp(size, env.Device.Limits().ConstantBufferAlignment)
	buf, err := env.Device.NewBuffer(&device.BufferDesc{
		Label:       "constant buffer",
		Size:        aligned,
		Usage:       gputypes.BufferUsageUniform,
		HostVisible: true,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create constant buffer: %w", err)
	}
	mapped := buf.Mapped()
	if uint64(len(mapped)) < aligned {
		env.Device.DestroyBuffer(buf)
		return nil, fmt.Errorf("resource: constant buffer mapping has %d of %d bytes", len(mapped), aligned)
	}
	cb := &ConstantBuffer{}
	cb.init(&env, "constant buffer", size, buf)
	cb.mapped.Store(&mapped)
	env.logger().Debug("resource: constant buffer created", "size", size, "allocated", aligned)
	return cb, nil
}

// NewConstantBufferForBlock creates a constant buffer sized for a reflected
// register block. SetParameter writes the block's parameters by name.
func NewConstantBufferForBlock(env Env, block *shader.RegisterBlock) (*ConstantBuffer, error) {
	if block == nil {
		return nil, ErrNilSource
	}
	cb, err := NewConstantBuffer(env, uint64(block.Size))
	if err != nil {
		return nil, err
	}
	cb.label = block.Name
	cb.block = block
	return cb, nil
}

// Block returns the register block the buffer was created for, or nil.
func (cb *ConstantBuffer) Block() *shader.RegisterBlock { return cb.block }

// Mapped returns the host mapping, or nil after Destroy.
func (cb *ConstantBuffer) Mapped() []byte {
	if p := cb.mapped.Load(); p != nil {
		return *p
	}
	return nil
}

// SetData copies src into the mapping at offset and makes it visible to the
// device. A non-nil empty src does nothing.
func (cb *ConstantBuffer) SetData(src []byte, offset uint64) error {
	if src == nil {
		return ErrNilSource
	}
	p := cb.mapped.Load()
	if p == nil {
		return ErrDestroyed
	}
	if len(src) == 0 {
		return nil
	}
	mapped := *p
	end := offset + uint64(len(src))
	if offset > uint64(len(mapped)) || end > uint64(len(mapped)) {
		return fmt.Errorf("%w: [%d:%d] of %d bytes", ErrOutOfRange, offset, end, len(mapped))
	}
	copy(mapped[offset:end], src)
	return cb.env.Device.FlushMapped(cb.buf, offset, uint64(len(src)))
}

// SetParameter writes data to a parameter of the block the buffer was
// created for. data longer than the parameter is rejected.
func (cb *ConstantBuffer) SetParameter(name string, data []byte) error {
	if cb.block == nil {
		return fmt.Errorf("%w: %q: buffer has no register block", ErrUnknownParameter, name)
	}
	p, ok := cb.block.Parameter(name)
	if !ok {
		return fmt.Errorf("%w: %q in block %s", ErrUnknownParameter, name, cb.block.Name)
	}
	if uint32(len(data)) > p.Size {
		return fmt.Errorf("%w: %d bytes for parameter %q of %d", ErrOutOfRange, len(data), name, p.Size)
	}
	return cb.SetData(data, uint64(p.Offset))
}

// Destroy purges the views of the buffer, drops the mapping and releases
// the backend buffer, in that order. Only the first call has an effect.
func (cb *ConstantBuffer) Destroy() {
	cb.destroy(func() { cb.mapped.Store(nil) })
}

// Liveness implements descriptor.Collectable.
func (cb *ConstantBuffer) Liveness() func() bool { return descriptor.WeakLiveness(cb) }
