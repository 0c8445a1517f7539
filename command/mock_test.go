package command

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/rhi/device"
)

// mockDevice implements the recorder side of device.Device. Fences either
// signal at submission (autoComplete) or wait for complete.
type mockDevice struct {
	device.Device

	api          device.API
	autoComplete bool
	recorderErr  error
	submitErr    error

	mu      sync.Mutex
	pending []*mockFence
	submits atomic.Int64
}

func newMockDevice() *mockDevice {
	return &mockDevice{api: device.APISoftware, autoComplete: true}
}

func (d *mockDevice) API() device.API { return d.api }

func (d *mockDevice) NewRecorder(t device.CommandType) (device.Recorder, error) {
	if d.recorderErr != nil {
		return nil, d.recorderErr
	}
	return &mockRecorder{dev: d}, nil
}

// completeAll signals every pending fence with err.
func (d *mockDevice) completeAll(err error) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, f := range pending {
		f.complete(err)
	}
}

type mockRecorder struct {
	dev       *mockDevice
	recording bool
	closed    bool
	copies    int
}

func (r *mockRecorder) Begin(string) error {
	if r.recording || r.closed {
		return errors.New("mock: already recording")
	}
	r.recording = true
	r.copies = 0
	return nil
}

func (r *mockRecorder) CopyBuffer(src, dst device.Buffer, srcOffset, dstOffset, size uint64) error {
	if !r.recording {
		return device.ErrNotRecording
	}
	r.copies++
	return nil
}

func (r *mockRecorder) CopyBufferToTexture(device.Buffer, uint64, uint32, device.Texture, uint32) error {
	if !r.recording {
		return device.ErrNotRecording
	}
	r.copies++
	return nil
}

func (r *mockRecorder) End() error {
	if !r.recording {
		return device.ErrNotRecording
	}
	r.recording, r.closed = false, true
	return nil
}

func (r *mockRecorder) Submit() (device.Fence, error) {
	if !r.closed {
		return nil, errors.New("mock: not closed")
	}
	r.closed = false
	if r.dev.submitErr != nil {
		return nil, r.dev.submitErr
	}
	r.dev.submits.Add(1)
	f := &mockFence{done: make(chan struct{})}
	if r.dev.autoComplete {
		f.complete(nil)
		return f, nil
	}
	r.dev.mu.Lock()
	r.dev.pending = append(r.dev.pending, f)
	r.dev.mu.Unlock()
	return f, nil
}

func (r *mockRecorder) Discard() {
	r.recording, r.closed = false, false
}

func (r *mockRecorder) Native() device.Handle {
	if !r.recording && !r.closed {
		return device.Handle{}
	}
	return device.NewHandle(device.APISoftware, 1, r)
}

type mockFence struct {
	once sync.Once
	done chan struct{}
	err  error
}

func (f *mockFence) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

func (f *mockFence) Wait(timeout time.Duration) error {
	select {
	case <-f.done:
		return f.err
	case <-time.After(timeout):
		return device.ErrTimeout
	}
}
