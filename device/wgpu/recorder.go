package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/device"
)

// recorderState tracks the HAL encoder lifecycle.
type recorderState int

const (
	recorderIdle recorderState = iota
	recorderRecording
	recorderClosed
)

var errNotClosed = errors.New("wgpu: recorder not closed")

// recorder records into a fresh HAL command encoder per submission.
type recorder struct {
	dev     *Device
	typ     device.CommandType
	state   recorderState
	encoder hal.CommandEncoder
	cmdBuf  hal.CommandBuffer
	native  device.Handle
}

// Begin implements device.Recorder.
func (r *recorder) Begin(label string) error {
	if r.state != recorderIdle {
		return fmt.Errorf("wgpu: begin while %s", r.stateName())
	}
	encoder, err := r.dev.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	r.encoder = encoder
	r.native = r.dev.handle(encoder)
	r.state = recorderRecording
	return nil
}

// CopyBuffer implements device.Recorder.
func (r *recorder) CopyBuffer(src, dst device.Buffer, srcOffset, dstOffset, size uint64) error {
	if r.state != recorderRecording {
		return device.ErrNotRecording
	}
	if size%copyAlignment != 0 || srcOffset%copyAlignment != 0 || dstOffset%copyAlignment != 0 {
		return fmt.Errorf("wgpu: copy offsets and size must be %d-byte aligned", copyAlignment)
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
	r.encoder.CopyBufferToBuffer(s.buf, d.buf, []hal.BufferCopy{
		{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size},
	})
	return nil
}

// CopyBufferToTexture implements device.Recorder. The texture is moved to
// the copy destination state for the copy and left ready for sampling.
func (r *recorder) CopyBufferToTexture(src device.Buffer, srcOffset uint64, bytesPerRow uint32, dst device.Texture, level uint32) error {
	if r.state != recorderRecording {
		return device.ErrNotRecording
	}
	if r.typ == device.CommandCompute {
		return fmt.Errorf("wgpu: texture copy on %v list", r.typ)
	}
	if bytesPerRow%textureRowAlignment != 0 {
		return fmt.Errorf("wgpu: bytes per row %d not %d-byte aligned", bytesPerRow, textureRowAlignment)
	}
	s, err := r.dev.buffer(src)
	if err != nil {
		return err
	}
	t, err := r.dev.texture(dst)
	if err != nil {
		return err
	}
	if level >= t.mips {
		return fmt.Errorf("%w: mip level %d", device.ErrOutOfRange, level)
	}
	w := device.MipExtent(t.width, level)
	h := device.MipExtent(t.height, level)
	if uint64(bytesPerRow) < uint64(w)*4 {
		return fmt.Errorf("wgpu: bytes per row %d below row size %d", bytesPerRow, w*4)
	}
	if err := s.checkRange(srcOffset, uint64(bytesPerRow)*uint64(h-1)+uint64(w)*4); err != nil {
		return err
	}

	r.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsage(0),
			NewUsage: gputypes.TextureUsageCopyDst,
		},
	}})
	r.encoder.CopyBufferToTexture(s.buf, t.tex, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: srcOffset, BytesPerRow: bytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: level},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	r.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})
	return nil
}

// End implements device.Recorder.
func (r *recorder) End() error {
	if r.state != recorderRecording {
		return device.ErrNotRecording
	}
	cmdBuf, err := r.encoder.EndEncoding()
	if err != nil {
		r.reset()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	r.cmdBuf = cmdBuf
	r.state = recorderClosed
	return nil
}

// Submit implements device.Recorder.
func (r *recorder) Submit() (device.Fence, error) {
	if r.state != recorderClosed {
		return nil, errNotClosed
	}
	cmdBuf := r.cmdBuf
	r.cmdBuf = nil
	r.reset()
	f, err := r.dev.submit(cmdBuf)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Discard implements device.Recorder.
func (r *recorder) Discard() {
	switch r.state {
	case recorderRecording:
		r.encoder.DiscardEncoding()
	case recorderClosed:
		r.dev.hal.FreeCommandBuffer(r.cmdBuf)
	}
	r.cmdBuf = nil
	r.reset()
}

// Native implements device.Recorder.
func (r *recorder) Native() device.Handle { return r.native }

func (r *recorder) reset() {
	r.encoder = nil
	r.native = device.Handle{}
	r.state = recorderIdle
}

func (r *recorder) stateName() string {
	switch r.state {
	case recorderRecording:
		return "recording"
	case recorderClosed:
		return "closed"
	default:
		return "idle"
	}
}
