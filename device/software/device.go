// Package software implements the immediate-mode host memory backend.
//
// Buffers and textures live in Go memory. Recorded copies run in submission
// order on a single queue goroutine, and every submission signals a fence
// when its commands have run. The backend needs no GPU and is used for
// headless operation and for checking data paths end to end.
package software

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi/device"
	"github.com/gogpu/rhi/internal/logging"
)

// Backend limits. The alignments match the explicit backends so data laid
// out for one backend is valid on every other.
const (
	constantBufferAlignment = 256
	copyAlignment           = 4
	textureRowAlignment     = 256
	maxBufferSize           = 256 << 20
	maxTextureDimension     = 8192
	queueDepth              = 64
)

func init() {
	device.Register(device.APISoftware, func(opts device.Options) (device.Device, error) {
		return New(opts), nil
	})
}

// job is one queue submission.
type job struct {
	ops   []func() error
	fence *fence
}

// Device is a software device with one in-order queue.
type Device struct {
	label  string
	log    *slog.Logger
	nextID atomic.Uint64

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}

	live atomic.Int64
}

var _ device.Device = (*Device)(nil)

// New creates a software device and starts its queue.
func New(opts device.Options) *Device {
	d := &Device{
		label: opts.Label,
		log:   logging.OrNop(opts.Logger),
		queue: make(chan job, queueDepth),
		done:  make(chan struct{}),
	}
	go d.run()
	d.log.Debug("software: device created", "label", d.label)
	return d
}

// run executes submissions in order until the queue is closed.
func (d *Device) run() {
	defer close(d.done)
	for j := range d.queue {
		var err error
		for _, op := range j.ops {
			if err = op(); err != nil {
				break
			}
		}
		if err != nil {
			d.log.Warn("software: submission failed", "err", err)
		}
		j.fence.signal(err)
	}
}

// submit enqueues ops and returns the fence of the submission.
func (d *Device) submit(ops []func() error) (*fence, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, device.ErrDestroyed
	}
	f := newFence()
	d.queue <- job{ops: ops, fence: f}
	return f, nil
}

func (d *Device) id() uint64 {
	return d.nextID.Add(1)
}

func (d *Device) handle(id uint64) device.Handle {
	return device.NewHandle(device.APISoftware, id, nil)
}

// API implements device.Device.
func (d *Device) API() device.API { return device.APISoftware }

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

// Live returns the number of buffers, textures and views not yet destroyed.
func (d *Device) Live() int {
	return int(d.live.Load())
}

// NewBuffer implements device.Device.
func (d *Device) NewBuffer(desc *device.BufferDesc) (device.Buffer, error) {
	if desc == nil || desc.Size == 0 || desc.Size > maxBufferSize {
		return nil, device.ErrInvalidSize
	}
	if d.isClosed() {
		return nil, device.ErrDestroyed
	}
	b := &buffer{
		dev:         d,
		id:          d.id(),
		label:       desc.Label,
		usage:       desc.Usage,
		hostVisible: desc.HostVisible,
		data:        make([]byte, desc.Size),
	}
	d.live.Add(1)
	d.log.Debug("software: buffer created", "label", desc.Label, "size", desc.Size)
	return b, nil
}

// DestroyBuffer implements device.Device.
func (d *Device) DestroyBuffer(b device.Buffer) {
	sb, ok := b.(*buffer)
	if !ok || sb.dev != d {
		return
	}
	if sb.destroyed.CompareAndSwap(false, true) {
		d.live.Add(-1)
	}
}

// FlushMapped implements device.Device. Host memory is the device memory,
// so only the range is validated.
func (d *Device) FlushMapped(b device.Buffer, offset, size uint64) error {
	sb, err := d.buffer(b)
	if err != nil {
		return err
	}
	if !sb.hostVisible {
		return fmt.Errorf("software: flush of unmapped buffer %q", sb.label)
	}
	return sb.checkRange(offset, size)
}

// ReadBuffer implements device.Device.
func (d *Device) ReadBuffer(b device.Buffer, offset uint64, dst []byte) error {
	sb, err := d.buffer(b)
	if err != nil {
		return err
	}
	if err := sb.checkRange(offset, uint64(len(dst))); err != nil {
		return err
	}
	f, err := d.submit([]func() error{func() error {
		copy(dst, sb.data[offset:])
		return nil
	}})
	if err != nil {
		return err
	}
	return f.Wait(time.Minute)
}

// NewTexture implements device.Device. Only 4-byte RGBA and BGRA formats
// are supported.
func (d *Device) NewTexture(desc *device.TextureDesc) (device.Texture, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 ||
		desc.Width > maxTextureDimension || desc.Height > maxTextureDimension {
		return nil, device.ErrInvalidSize
	}
	switch desc.Format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
	default:
		return nil, fmt.Errorf("software: unsupported texture format %v", desc.Format)
	}
	if d.isClosed() {
		return nil, device.ErrDestroyed
	}
	mips := max(desc.MipLevels, 1)
	if mips > device.MipLevelCount(desc.Width, desc.Height) {
		return nil, fmt.Errorf("%w: %d mip levels for %dx%d", device.ErrInvalidSize, mips, desc.Width, desc.Height)
	}
	t := &texture{
		dev:    d,
		id:     d.id(),
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		levels: make([][]byte, mips),
	}
	for i := range t.levels {
		w := device.MipExtent(desc.Width, uint32(i))
		h := device.MipExtent(desc.Height, uint32(i))
		t.levels[i] = make([]byte, int(w)*int(h)*4)
	}
	d.live.Add(1)
	return t, nil
}

// ReadTexture returns a copy of one mip level, tightly packed. It waits for
// queued work.
func (d *Device) ReadTexture(t device.Texture, level uint32) ([]byte, error) {
	st, err := d.texture(t)
	if err != nil {
		return nil, err
	}
	if level >= uint32(len(st.levels)) {
		return nil, fmt.Errorf("%w: mip level %d", device.ErrOutOfRange, level)
	}
	out := make([]byte, len(st.levels[level]))
	f, err := d.submit([]func() error{func() error {
		copy(out, st.levels[level])
		return nil
	}})
	if err != nil {
		return nil, err
	}
	if err := f.Wait(time.Minute); err != nil {
		return nil, err
	}
	return out, nil
}

// DestroyTexture implements device.Device.
func (d *Device) DestroyTexture(t device.Texture) {
	st, ok := t.(*texture)
	if !ok || st.dev != d {
		return
	}
	if st.destroyed.CompareAndSwap(false, true) {
		d.live.Add(-1)
	}
}

// NewView implements device.Device.
func (d *Device) NewView(desc *device.ViewDesc) (device.View, error) {
	if desc == nil || (desc.Buffer == nil) == (desc.Texture == nil) {
		return nil, fmt.Errorf("software: view needs exactly one buffer or texture")
	}
	v := &view{dev: d, id: d.id(), label: desc.Label, writable: desc.Writable}
	if desc.Buffer != nil {
		sb, err := d.buffer(desc.Buffer)
		if err != nil {
			return nil, err
		}
		size := desc.Size
		if size == 0 {
			if desc.Offset > sb.Size() {
				return nil, device.ErrOutOfRange
			}
			size = sb.Size() - desc.Offset
		}
		if err := sb.checkRange(desc.Offset, size); err != nil {
			return nil, err
		}
		v.target, v.offset, v.size = sb.id, desc.Offset, size
	} else {
		st, err := d.texture(desc.Texture)
		if err != nil {
			return nil, err
		}
		v.target = st.id
	}
	d.live.Add(1)
	return v, nil
}

// DestroyView implements device.Device.
func (d *Device) DestroyView(v device.View) {
	sv, ok := v.(*view)
	if !ok || sv.dev != d {
		return
	}
	if sv.destroyed.CompareAndSwap(false, true) {
		d.live.Add(-1)
	}
}

// NewRecorder implements device.Device.
func (d *Device) NewRecorder(t device.CommandType) (device.Recorder, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("software: invalid command type %v", t)
	}
	if d.isClosed() {
		return nil, device.ErrDestroyed
	}
	return &recorder{dev: d, typ: t}, nil
}

// WaitIdle implements device.Device.
func (d *Device) WaitIdle(timeout time.Duration) error {
	f, err := d.submit(nil)
	if err != nil {
		return err
	}
	return f.Wait(timeout)
}

// Destroy drains and stops the queue. It is safe to call more than once.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	if n := d.live.Load(); n != 0 {
		d.log.Warn("software: device destroyed with live objects", "count", n)
	}
	d.log.Debug("software: device destroyed", "label", d.label)
}

func (d *Device) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

func (d *Device) buffer(b device.Buffer) (*buffer, error) {
	sb, ok := b.(*buffer)
	if !ok || sb.dev != d {
		return nil, device.ErrForeignObject
	}
	if sb.destroyed.Load() {
		return nil, device.ErrDestroyed
	}
	return sb, nil
}

func (d *Device) texture(t device.Texture) (*texture, error) {
	st, ok := t.(*texture)
	if !ok || st.dev != d {
		return nil, device.ErrForeignObject
	}
	if st.destroyed.Load() {
		return nil, device.ErrDestroyed
	}
	return st, nil
}
