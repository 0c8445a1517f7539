package wgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/device"
)

// fence owns one submission: its HAL fence and command buffer. Both are
// released the first time a wait observes completion.
type fence struct {
	dev    *Device
	mu     sync.Mutex
	fence  hal.Fence
	cmdBuf hal.CommandBuffer
	done   bool
	err    error
}

// Wait implements device.Fence.
func (f *fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return f.err
	}

	ok, err := f.dev.hal.Wait(f.fence, 1, timeout)
	switch {
	case err != nil:
		f.err = fmt.Errorf("wgpu: wait for GPU: %w", err)
	case !ok:
		return fmt.Errorf("%w after %v", device.ErrTimeout, timeout)
	}

	f.dev.hal.DestroyFence(f.fence)
	f.dev.hal.FreeCommandBuffer(f.cmdBuf)
	f.fence, f.cmdBuf = nil, nil
	f.done = true
	f.dev.retire(f)
	return f.err
}
