package resource

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// PixelBuffer is decoded image data: Height rows of Width pixels with
// Channels interleaved 8-bit channels, tightly packed.
//
// Channels is 1 (gray), 2 (gray, alpha), 3 (RGB) or 4 (RGBA).
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// PixelBufferFromImage converts img to a 4-channel pixel buffer.
func PixelBufferFromImage(img image.Image) PixelBuffer {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	}
	return PixelBuffer{Width: b.Dx(), Height: b.Dy(), Channels: 4, Pix: rgba.Pix}
}

// Validate checks the dimensions against the data length.
func (p PixelBuffer) Validate() error {
	switch {
	case p.Pix == nil:
		return ErrNilSource
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: %dx%d", ErrInvalidPixels, p.Width, p.Height)
	case p.Channels < 1 || p.Channels > 4:
		return fmt.Errorf("%w: %d channels", ErrInvalidPixels, p.Channels)
	case len(p.Pix) != p.Width*p.Height*p.Channels:
		return fmt.Errorf("%w: %d bytes for %dx%dx%d", ErrInvalidPixels, len(p.Pix), p.Width, p.Height, p.Channels)
	}
	return nil
}

// RGBA expands the pixel data to 8-bit RGBA. Gray is replicated to the
// color channels and missing alpha is opaque.
func (p PixelBuffer) RGBA() (*image.RGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	if p.Channels == 4 {
		copy(img.Pix, p.Pix)
		return img, nil
	}
	for i, o := 0, 0; i < len(p.Pix); i, o = i+p.Channels, o+4 {
		px := img.Pix[o : o+4 : o+4]
		switch p.Channels {
		case 1:
			px[0], px[1], px[2], px[3] = p.Pix[i], p.Pix[i], p.Pix[i], 0xff
		case 2:
			px[0], px[1], px[2], px[3] = p.Pix[i], p.Pix[i], p.Pix[i], p.Pix[i+1]
		case 3:
			px[0], px[1], px[2], px[3] = p.Pix[i], p.Pix[i+1], p.Pix[i+2], 0xff
		}
	}
	return img, nil
}

// mipChain returns base followed by every smaller level down to 1x1, each
// scaled bilinearly from the previous one.
func mipChain(base *image.RGBA, levels uint32) []*image.RGBA {
	chain := make([]*image.RGBA, 1, levels)
	chain[0] = base
	for i := uint32(1); i < levels; i++ {
		prev := chain[i-1]
		w := max(prev.Bounds().Dx()/2, 1)
		h := max(prev.Bounds().Dy()/2, 1)
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), xdraw.Src, nil)
		chain = append(chain, next)
	}
	return chain
}
