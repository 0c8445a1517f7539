package resource

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/rhi/command"
	"github.com/gogpu/rhi/descriptor"
	"github.com/gogpu/rhi/device"
)

// TextureOptions configures NewTexture.
type TextureOptions struct {
	// Label is an optional debug name.
	Label string

	// GenerateMips builds the full mip chain down to 1x1.
	GenerateMips bool

	// RenderTarget also allows the texture as a render attachment.
	RenderTarget bool
}

// Texture is an RGBA8 2D texture uploaded from a PixelBuffer.
type Texture struct {
	env       Env
	id        uuid.UUID
	label     string
	tex       device.Texture
	destroyed atomic.Bool
}

var _ descriptor.TextureResource = (*Texture)(nil)

// NewTexture converts pixels to RGBA8, optionally generates mips, and
// uploads every level through one copy list.
func NewTexture(env Env, pixels PixelBuffer, opts TextureOptions) (*Texture, error) {
	if err := env.check(); err != nil {
		return nil, err
	}
	base, err := pixels.RGBA()
	if err != nil {
		return nil, err
	}
	if env.Commands == nil {
		return nil, ErrNoCommands
	}
	label := opts.Label
	if label == "" {
		label = "texture"
	}

	w, h := uint32(pixels.Width), uint32(pixels.Height)
	levels := uint32(1)
	if opts.GenerateMips {
		levels = device.MipLevelCount(w, h)
	}
	chain := mipChain(base, levels)

	limits := env.Device.Limits()
	offsets, pitches, size := stagingLayout(chain, limits.TextureRowAlignment)
	data := make([]byte, size)
	for i, img := range chain {
		rowBytes := img.Bounds().Dx() * 4
		for y := range img.Bounds().Dy() {
			dst := offsets[i] + uint64(y)*uint64(pitches[i])
			copy(data[dst:dst+uint64(rowBytes)], img.Pix[y*img.Stride:y*img.Stride+rowBytes])
		}
	}
	staging, err := env.staging(label, size, data)
	if err != nil {
		return nil, err
	}
	defer env.Device.DestroyBuffer(staging)

	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	if opts.RenderTarget {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	tex, err := env.Device.NewTexture(&device.TextureDesc{
		Label:     label,
		Width:     w,
		Height:    h,
		MipLevels: levels,
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Usage:     usage,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create %s: %w", label, err)
	}
	err = env.submitCopy(label, func(l *command.List) error {
		for i := range chain {
			if err := l.CopyBufferToTexture(staging, offsets[i], pitches[i], tex, uint32(i)); err != nil {
				return fmt.Errorf("level %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		env.Device.DestroyTexture(tex)
		return nil, err
	}

	env.logger().Debug("resource: texture uploaded", "label", label, "width", w, "height", h, "mips", levels)
	return &Texture{env: env, id: uuid.New(), label: label, tex: tex}, nil
}

// stagingLayout places every level at a row-aligned offset and returns the
// offsets, row pitches and total size.
func stagingLayout(chain []*image.RGBA, rowAlign uint32) (offsets []uint64, pitches []uint32, size uint64) {
	rowAlign = max(rowAlign, 1)
	for _, img := range chain {
		pitch := uint32(device.AlignUp(uint64(img.Bounds().Dx()*4), uint64(rowAlign)))
		offsets = append(offsets, size)
		pitches = append(pitches, pitch)
		size += uint64(pitch) * uint64(img.Bounds().Dy())
	}
	return offsets, pitches, size
}

// ID returns the process-unique resource identity.
func (t *Texture) ID() uuid.UUID { return t.id }

// Width returns the width of mip level 0.
func (t *Texture) Width() uint32 { return t.tex.Width() }

// Height returns the height of mip level 0.
func (t *Texture) Height() uint32 { return t.tex.Height() }

// MipLevels returns the number of mip levels.
func (t *Texture) MipLevels() uint32 { return t.tex.MipLevels() }

// DeviceTexture returns the backend texture, or nil after Destroy.
func (t *Texture) DeviceTexture() device.Texture {
	if t.destroyed.Load() {
		return nil
	}
	return t.tex
}

// Liveness implements descriptor.Collectable.
func (t *Texture) Liveness() func() bool { return descriptor.WeakLiveness(t) }

// Destroy purges the views of the texture and releases it. Only the first
// call has an effect.
func (t *Texture) Destroy() {
	if !t.destroyed.CompareAndSwap(false, true) {
		return
	}
	t.env.release(t.id)
	t.env.Device.DestroyTexture(t.tex)
	t.env.logger().Debug("resource: texture destroyed", "label", t.label, "id", t.id)
}
