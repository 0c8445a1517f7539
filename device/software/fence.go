package software

import (
	"time"

	"github.com/gogpu/rhi/device"
)

// fence is signaled once by the queue goroutine.
type fence struct {
	done chan struct{}
	err  error
}

func newFence() *fence {
	return &fence{done: make(chan struct{})}
}

// signal records the submission result. err is written before done is
// closed, so readers that observed done see it.
func (f *fence) signal(err error) {
	f.err = err
	close(f.done)
}

// Wait implements device.Fence.
func (f *fence) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		select {
		case <-f.done:
			return f.err
		default:
			return device.ErrTimeout
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return f.err
	case <-timer.C:
		return device.ErrTimeout
	}
}
