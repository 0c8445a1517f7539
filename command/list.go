package command

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi/device"
)

// State is the execution state of a List.
type State int32

// List states. Lists move Idle -> Recording -> Executing and finish in
// Completed or Error. Reset returns a finished or recording list to Idle.
const (
	StateIdle State = iota
	StateRecording
	StateExecuting
	StateCompleted
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRecording:
		return "Recording"
	case StateExecuting:
		return "Executing"
	case StateCompleted:
		return "Completed"
	case StateError:
		return "Error"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Callback is invoked once per ExecuteAsync after the list has moved to
// StateCompleted or StateError. err is nil on success.
type Callback func(l *List, err error)

// nextID allocates list identities for the whole process.
var nextID atomic.Uint64

// List is a unit of recorded GPU work.
//
// A List is owned by one holder at a time and its recording methods are not
// safe for concurrent use. State, ID and WaitForCompletion may be called
// from any goroutine.
type List struct {
	id    uint64
	typ   device.CommandType
	dev   device.Device
	rec   device.Recorder
	opts  options
	state atomic.Int32

	mu   sync.Mutex
	done chan struct{}
	err  error
}

// New creates a list recording on dev. It fails with device.ErrAPINotSet or
// device.ErrUnknownAPI when the device reports no usable backend.
func New(dev device.Device, typ device.CommandType, opts ...Option) (*List, error) {
	return newList(dev, typ, buildOptions(opts))
}

func newList(dev device.Device, typ device.CommandType, o options) (*List, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if err := dev.API().Check(); err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("command: invalid command type %v", typ)
	}
	rec, err := dev.NewRecorder(typ)
	if err != nil {
		return nil, fmt.Errorf("command: create %v recorder: %w", typ, err)
	}
	return &List{
		id:   nextID.Add(1),
		typ:  typ,
		dev:  dev,
		rec:  rec,
		opts: o,
	}, nil
}

// ID returns the process-unique identity of the list.
func (l *List) ID() uint64 { return l.id }

// Type returns the command type.
func (l *List) Type() device.CommandType { return l.typ }

// State returns the current state.
func (l *List) State() State { return State(l.state.Load()) }

// Native returns the backend recorder handle. It is the zero handle unless
// the list is recording.
func (l *List) Native() device.Handle { return l.rec.Native() }

// Begin opens the list for recording.
func (l *List) Begin() error {
	if s := l.State(); s != StateIdle {
		return fmt.Errorf("%w: begin in state %v", ErrInvalidState, s)
	}
	if err := l.rec.Begin(l.opts.label); err != nil {
		return fmt.Errorf("command: begin list %d: %w", l.id, err)
	}
	l.state.Store(int32(StateRecording))
	return nil
}

// CopyBuffer records a buffer to buffer copy.
func (l *List) CopyBuffer(src, dst device.Buffer, srcOffset, dstOffset, size uint64) error {
	if s := l.State(); s != StateRecording {
		return fmt.Errorf("%w: record in state %v", ErrInvalidState, s)
	}
	return l.rec.CopyBuffer(src, dst, srcOffset, dstOffset, size)
}

// CopyBufferToTexture records the upload of one texture mip level from a
// buffer with rows bytesPerRow apart.
func (l *List) CopyBufferToTexture(src device.Buffer, srcOffset uint64, bytesPerRow uint32, dst device.Texture, level uint32) error {
	if s := l.State(); s != StateRecording {
		return fmt.Errorf("%w: record in state %v", ErrInvalidState, s)
	}
	return l.rec.CopyBufferToTexture(src, srcOffset, bytesPerRow, dst, level)
}

// ExecuteAsync closes the recording and submits it to the device queue.
// It returns once the work is queued; the list moves to StateCompleted or
// StateError when the device signals the submission's fence, and cb, if
// not nil, is then called from a background goroutine.
//
// An Idle list is opened implicitly and submits no commands. If the
// submission itself fails the list moves to StateError, the error is
// returned and cb is not called.
func (l *List) ExecuteAsync(cb Callback) error {
	switch s := l.State(); s {
	case StateIdle:
		if err := l.Begin(); err != nil {
			return err
		}
	case StateRecording:
	default:
		return fmt.Errorf("%w: execute in state %v", ErrInvalidState, s)
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.done = done
	l.err = nil
	l.mu.Unlock()
	l.state.Store(int32(StateExecuting))

	fence, err := l.submit()
	if err != nil {
		l.finish(done, err)
		return err
	}

	go func() {
		err := fence.Wait(l.opts.fenceTimeout)
		if err != nil {
			err = fmt.Errorf("command: list %d: %w", l.id, err)
		}
		l.finish(done, err)
		if cb != nil {
			cb(l, err)
		}
	}()
	return nil
}

func (l *List) submit() (device.Fence, error) {
	if err := l.rec.End(); err != nil {
		l.rec.Discard()
		return nil, fmt.Errorf("command: end list %d: %w", l.id, err)
	}
	fence, err := l.rec.Submit()
	if err != nil {
		l.rec.Discard()
		return nil, fmt.Errorf("command: submit list %d: %w", l.id, err)
	}
	return fence, nil
}

// finish publishes the final state before waking waiters.
func (l *List) finish(done chan struct{}, err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	if err != nil {
		l.state.Store(int32(StateError))
		l.opts.logger.Warn("command: execution failed", "list", l.id, "type", l.typ.String(), "err", err)
	} else {
		l.state.Store(int32(StateCompleted))
	}
	close(done)
}

// Done returns a channel closed when the current execution finishes, or
// nil when the list has not been executed since the last Reset.
func (l *List) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Err returns the error of the last finished execution.
func (l *List) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// WaitForCompletion blocks until the list reaches StateCompleted or
// StateError and returns the execution error. When ctx has no deadline the
// wait is bounded by the list's wait timeout. A list that was never
// executed fails with ErrInvalidState.
func (l *List) WaitForCompletion(ctx context.Context) error {
	done := l.Done()
	if done == nil {
		return fmt.Errorf("%w: wait in state %v", ErrInvalidState, l.State())
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.waitTimeout)
		defer cancel()
	}
	select {
	case <-done:
		return l.Err()
	case <-ctx.Done():
		return fmt.Errorf("command: wait for list %d: %w", l.id, ctx.Err())
	}
}

// Reset returns the list to StateIdle. Open recordings are discarded.
// Executing lists fail with ErrListBusy.
func (l *List) Reset() error {
	switch s := l.State(); s {
	case StateExecuting:
		return ErrListBusy
	case StateRecording:
		l.rec.Discard()
	}
	l.mu.Lock()
	l.done = nil
	l.err = nil
	l.mu.Unlock()
	l.state.Store(int32(StateIdle))
	return nil
}

// waitIdle waits for an executing list with the list's wait timeout.
func (l *List) waitIdle() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.waitTimeout)
	defer cancel()
	err := l.WaitForCompletion(ctx)
	if l.State() == StateExecuting {
		return err
	}
	return nil
}
