package software

import (
	"errors"
	"fmt"

	"github.com/gogpu/rhi/device"
)

// recorderState mirrors the encoder lifecycle of the explicit backends.
type recorderState int

const (
	recorderIdle recorderState = iota
	recorderRecording
	recorderClosed
)

// recorder collects copy operations as closures run by the queue goroutine.
type recorder struct {
	dev   *Device
	typ   device.CommandType
	id    uint64
	label string
	state recorderState
	ops   []func() error
}

var errNotClosed = errors.New("software: recorder not closed")

// Begin implements device.Recorder.
func (r *recorder) Begin(label string) error {
	if r.state != recorderIdle {
		return fmt.Errorf("software: begin while recording %q", r.label)
	}
	r.id = r.dev.id()
	r.label = label
	r.ops = r.ops[:0]
	r.state = recorderRecording
	return nil
}

// CopyBuffer implements device.Recorder.
func (r *recorder) CopyBuffer(src, dst device.Buffer, srcOffset, dstOffset, size uint64) error {
	if r.state != recorderRecording {
		return device.ErrNotRecording
	}
	if size%copyAlignment != 0 || srcOffset%copyAlignment != 0 || dstOffset%copyAlignment != 0 {
		return fmt.Errorf("software: copy offsets and size must be %d-byte aligned", copyAlignment)
	}
	s, err := r.dev.buffer(src)
	if err != nil {
		return err
	}
	d, err := r.dev.buffer(dst)
	if err != nil {
		return err
	}
	if err := s.checkRange(srcOffset, size); err != nil {
		return err
	}
	if err := d.checkRange(dstOffset, size); err != nil {
		return err
	}
	r.ops = append(r.ops, func() error {
		if s.destroyed.Load() || d.destroyed.Load() {
			return device.ErrDestroyed
		}
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
		return nil
	})
	return nil
}

// CopyBufferToTexture implements device.Recorder.
func (r *recorder) CopyBufferToTexture(src device.Buffer, srcOffset uint64, bytesPerRow uint32, dst device.Texture, level uint32) error {
	if r.state != recorderRecording {
		return device.ErrNotRecording
	}
	if r.typ == device.CommandCompute {
		return fmt.Errorf("software: texture copy on %v list", r.typ)
	}
	if bytesPerRow%textureRowAlignment != 0 {
		return fmt.Errorf("software: bytes per row %d not %d-byte aligned", bytesPerRow, textureRowAlignment)
	}
	s, err := r.dev.buffer(src)
	if err != nil {
		return err
	}
	t, err := r.dev.texture(dst)
	if err != nil {
		return err
	}
	if level >= t.MipLevels() {
		return fmt.Errorf("%w: mip level %d", device.ErrOutOfRange, level)
	}
	w := device.MipExtent(t.width, level)
	h := device.MipExtent(t.height, level)
	rowBytes := uint64(w) * 4
	if uint64(bytesPerRow) < rowBytes {
		return fmt.Errorf("software: bytes per row %d below row size %d", bytesPerRow, rowBytes)
	}
	if err := s.checkRange(srcOffset, uint64(bytesPerRow)*uint64(h-1)+rowBytes); err != nil {
		return err
	}
	r.ops = append(r.ops, func() error {
		if s.destroyed.Load() || t.destroyed.Load() {
			return device.ErrDestroyed
		}
		dstLevel := t.levels[level]
		for y := range uint64(h) {
			from := srcOffset + y*uint64(bytesPerRow)
			copy(dstLevel[y*rowBytes:(y+1)*rowBytes], s.data[from:from+rowBytes])
		}
		return nil
	})
	return nil
}

// End implements device.Recorder.
func (r *recorder) End() error {
	if r.state != recorderRecording {
		return device.ErrNotRecording
	}
	r.state = recorderClosed
	return nil
}

// Submit implements device.Recorder. The recorder returns to idle and may
// be opened again immediately; the submitted ops are owned by the queue.
func (r *recorder) Submit() (device.Fence, error) {
	if r.state != recorderClosed {
		return nil, errNotClosed
	}
	ops := r.ops
	r.ops = nil
	r.state = recorderIdle
	f, err := r.dev.submit(ops)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Discard implements device.Recorder.
func (r *recorder) Discard() {
	r.ops = r.ops[:0]
	r.state = recorderIdle
}

// Native implements device.Recorder.
func (r *recorder) Native() device.Handle {
	if r.state == recorderIdle {
		return device.Handle{}
	}
	return r.dev.handle(r.id)
}
