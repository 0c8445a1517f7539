package software

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi/device"
)

// buffer is a host memory buffer.
type buffer struct {
	dev         *Device
	id          uint64
	label       string
	usage       gputypes.BufferUsage
	hostVisible bool
	data        []byte
	destroyed   atomic.Bool
}

func (b *buffer) Size() uint64                { return uint64(len(b.data)) }
func (b *buffer) Usage() gputypes.BufferUsage { return b.usage }
func (b *buffer) Native() device.Handle       { return b.dev.handle(b.id) }

// Mapped returns the backing memory for host-visible buffers.
func (b *buffer) Mapped() []byte {
	if !b.hostVisible || b.destroyed.Load() {
		return nil
	}
	return b.data
}

func (b *buffer) checkRange(offset, size uint64) error {
	if offset > b.Size() || size > b.Size()-offset {
		return fmt.Errorf("%w: [%d, %d) of buffer %q (%d bytes)",
			device.ErrOutOfRange, offset, offset+size, b.label, b.Size())
	}
	return nil
}

// texture stores each mip level as tightly packed 4-byte texels.
type texture struct {
	dev       *Device
	id        uint64
	label     string
	width     uint32
	height    uint32
	format    gputypes.TextureFormat
	levels    [][]byte
	destroyed atomic.Bool
}

func (t *texture) Width() uint32                  { return t.width }
func (t *texture) Height() uint32                 { return t.height }
func (t *texture) MipLevels() uint32              { return uint32(len(t.levels)) }
func (t *texture) Format() gputypes.TextureFormat { return t.format }
func (t *texture) Native() device.Handle          { return t.dev.handle(t.id) }

// view records what it refers to. Software views carry no device state.
type view struct {
	dev       *Device
	id        uint64
	label     string
	target    uint64
	offset    uint64
	size      uint64
	writable  bool
	destroyed atomic.Bool
}

func (v *view) Native() device.Handle { return v.dev.handle(v.id) }
