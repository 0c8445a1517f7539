// Package device defines the capability interfaces every native graphics
// backend implements.
//
// A Device is returned directly by the backend factory registered for an
// API, so callers never inspect or convert a backend's concrete type. Two
// execution models sit behind the same interfaces: the software backend
// executes copies on a host queue goroutine, while the wgpu backend records
// into HAL command encoders and submits to the device queue.
//
// Objects created by a Device must only be passed back to that Device.
package device

import (
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
)

// Limits describes backend alignment rules and size caps.
// They are immutable for the lifetime of a Device.
type Limits struct {
	// ConstantBufferAlignment is the size granularity of constant buffers.
	ConstantBufferAlignment uint64

	// CopyAlignment is the required alignment of buffer copy offsets and sizes.
	CopyAlignment uint64

	// MaxBufferSize is the largest buffer the device can create.
	MaxBufferSize uint64

	// TextureRowAlignment is the required alignment of the row pitch of
	// buffer data copied into a texture.
	TextureRowAlignment uint32

	// MaxTextureDimension2D is the largest width or height of a 2D texture.
	MaxTextureDimension2D uint32
}

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage

	// HostVisible requests a persistently mapped buffer. The mapping is
	// available through Buffer.Mapped from creation until DestroyBuffer.
	HostVisible bool
}

// Buffer is a backend buffer.
type Buffer interface {
	// Size returns the allocated size in bytes.
	Size() uint64

	// Usage returns the usage flags the buffer was created with.
	Usage() gputypes.BufferUsage

	// Mapped returns the persistent host mapping, or nil for device-local
	// buffers and destroyed buffers. Writes become visible to the device
	// after Device.FlushMapped.
	Mapped() []byte

	// Native returns the backend handle.
	Native() Handle
}

// TextureDesc describes a 2D texture to create.
type TextureDesc struct {
	Label     string
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    gputypes.TextureFormat
	Usage     gputypes.TextureUsage
}

// Texture is a backend 2D texture.
type Texture interface {
	Width() uint32
	Height() uint32
	MipLevels() uint32
	Format() gputypes.TextureFormat
	Native() Handle
}

// ViewDesc describes a view of exactly one of Buffer or Texture.
type ViewDesc struct {
	Label   string
	Buffer  Buffer
	Texture Texture

	// Offset and Size select a buffer range. Size 0 means the whole buffer.
	Offset uint64
	Size   uint64

	// Writable requests an unordered-access view.
	Writable bool
}

// View is a backend view of a buffer range or a texture.
type View interface {
	Native() Handle
}

// Recorder records commands for one submission.
// A Recorder is not safe for concurrent use.
type Recorder interface {
	// Begin opens a new recording.
	Begin(label string) error

	// CopyBuffer records a buffer to buffer copy.
	CopyBuffer(src, dst Buffer, srcOffset, dstOffset, size uint64) error

	// CopyBufferToTexture records a copy of one mip level from src, starting
	// at srcOffset with rows bytesPerRow apart, into dst. bytesPerRow must be
	// a multiple of Limits.TextureRowAlignment.
	CopyBufferToTexture(src Buffer, srcOffset uint64, bytesPerRow uint32, dst Texture, level uint32) error

	// End closes the recording.
	End() error

	// Submit sends the closed recording to the device queue. The returned
	// Fence signals when the work completes. The recorder can be opened
	// again with Begin once the fence has signaled.
	Submit() (Fence, error)

	// Discard drops any open or unsubmitted recording.
	Discard()

	// Native returns the backend encoder handle. It is the zero Handle
	// while nothing is being recorded.
	Native() Handle
}

// Fence tracks the completion of one submission.
type Fence interface {
	// Wait blocks until the work completes, fails, or timeout elapses.
	// It returns ErrTimeout when the timeout elapsed first; the fence can
	// be waited on again. Wait is safe for concurrent use.
	Wait(timeout time.Duration) error
}

// Device is the backend device and its single execution queue.
type Device interface {
	// API returns the backend identifier.
	API() API

	// Limits returns the implementation limits.
	Limits() Limits

	// NewBuffer creates a buffer.
	NewBuffer(desc *BufferDesc) (Buffer, error)

	// DestroyBuffer releases a buffer. Its mapping becomes invalid.
	DestroyBuffer(b Buffer)

	// FlushMapped makes host writes to a mapped range visible to the device.
	FlushMapped(b Buffer, offset, size uint64) error

	// ReadBuffer copies buffer contents into dst. It waits for queued work
	// touching the buffer.
	ReadBuffer(b Buffer, offset uint64, dst []byte) error

	// NewTexture creates a 2D texture.
	NewTexture(desc *TextureDesc) (Texture, error)

	// DestroyTexture releases a texture.
	DestroyTexture(t Texture)

	// NewView creates a view.
	NewView(desc *ViewDesc) (View, error)

	// DestroyView releases a view.
	DestroyView(v View)

	// NewRecorder creates a command recorder for the given queue work kind.
	NewRecorder(t CommandType) (Recorder, error)

	// WaitIdle drains the queue: it returns once every submission made
	// before the call has completed.
	WaitIdle(timeout time.Duration) error

	// Destroy releases the device. Objects created by it must be destroyed
	// first.
	Destroy()
}

// Options configures backend creation.
type Options struct {
	// Label is an optional debug name for the device.
	Label string

	// Logger receives backend diagnostics. Nil means silent.
	Logger *slog.Logger
}

// AlignUp rounds n up to a multiple of align. align must be a power of two
// or zero; zero leaves n unchanged.
func AlignUp(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// MipExtent returns the size of a texture dimension at a mip level.
func MipExtent(size, level uint32) uint32 {
	if level >= 32 {
		return 1
	}
	return max(size>>level, 1)
}

// MipLevelCount returns the length of a full mip chain for a 2D texture.
func MipLevelCount(width, height uint32) uint32 {
	n := uint32(1)
	for s := max(width, height); s > 1; s >>= 1 {
		n++
	}
	return n
}
