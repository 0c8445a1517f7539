package descriptor

import (
	"fmt"
	"weak"

	"github.com/google/uuid"

	"github.com/gogpu/rhi/device"
)

// Resource is anything views can be created for.
type Resource interface {
	ID() uuid.UUID
}

// BufferResource is a Resource backed by a device buffer.
type BufferResource interface {
	Resource
	DeviceBuffer() device.Buffer
}

// TextureResource is a Resource backed by a device texture.
type TextureResource interface {
	Resource
	DeviceTexture() device.Texture
}

// Collectable is implemented by resources whose views may be reclaimed by
// ViewManager.Collect once the resource itself is unreachable. The check
// returned by Liveness must not keep the resource alive.
type Collectable interface {
	Liveness() func() bool
}

// WeakLiveness returns a check that reports false once p has been garbage
// collected. It holds only a weak pointer to p.
func WeakLiveness[T any](p *T) func() bool {
	w := weak.Make(p)
	return func() bool {
		return w.Value() != nil
	}
}

// ViewReleaser is notified when a resource goes away so every view cached
// for it is purged.
type ViewReleaser interface {
	Release(id uuid.UUID) int
}

// viewDesc describes the backend view of res for kind.
func viewDesc(res Resource, kind ViewKind) (device.ViewDesc, error) {
	desc := device.ViewDesc{Label: kind.String() + " " + res.ID().String()}
	switch kind {
	case ViewCBV, ViewSRV, ViewUAV:
		if b, ok := res.(BufferResource); ok {
			desc.Buffer = b.DeviceBuffer()
		} else if kind != ViewCBV {
			if t, ok := res.(TextureResource); ok {
				desc.Texture = t.DeviceTexture()
			}
		}
		desc.Writable = kind == ViewUAV
	case ViewRTV, ViewDSV:
		if t, ok := res.(TextureResource); ok {
			desc.Texture = t.DeviceTexture()
		}
	case ViewSampler:
		return device.ViewDesc{}, fmt.Errorf("%w: samplers are not resource views, allocate them from the %v heap",
			ErrUnsupportedView, HeapSampler)
	}
	if desc.Buffer == nil && desc.Texture == nil {
		return device.ViewDesc{}, ErrUnsupportedView
	}
	return desc, nil
}
