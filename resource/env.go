package resource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/rhi/command"
	"github.com/gogpu/rhi/descriptor"
	"github.com/gogpu/rhi/device"
	"github.com/gogpu/rhi/internal/logging"
)

// DefaultWaitTimeout bounds the wait for an upload submission.
const DefaultWaitTimeout = 10 * time.Second

// Env carries the collaborators resource constructors need.
type Env struct {
	// Device creates the backend objects.
	Device device.Device

	// Commands hands out copy lists for uploads.
	Commands command.Source

	// Views is notified before a resource releases its backend objects.
	// Nil means no view manager is attached.
	Views descriptor.ViewReleaser

	// Logger receives diagnostics. Nil means silent.
	Logger *slog.Logger

	// FlushOnUpload drains the whole device queue after each upload
	// instead of waiting for the upload's own submission.
	FlushOnUpload bool

	// WaitTimeout bounds upload waits. 0 means DefaultWaitTimeout.
	WaitTimeout time.Duration
}

// check validates the active backend of e. Resource creation fails with
// device.ErrAPINotSet or device.ErrUnknownAPI before anything is created.
func (e *Env) check() error {
	if e.Device == nil {
		return ErrNilDevice
	}
	if err := e.Device.API().Check(); err != nil {
		return fmt.Errorf("resource: %w", err)
	}
	return nil
}

func (e *Env) logger() *slog.Logger {
	return logging.OrNop(e.Logger)
}

func (e *Env) waitTimeout() time.Duration {
	if e.WaitTimeout > 0 {
		return e.WaitTimeout
	}
	return DefaultWaitTimeout
}

// release notifies the view releaser that id is going away.
func (e *Env) release(id uuid.UUID) {
	if e.Views == nil {
		return
	}
	if n := e.Views.Release(id); n > 0 {
		e.logger().Debug("resource: views purged", "id", id, "count", n)
	}
}

// staging creates a mapped copy source holding data at offset 0.
func (e *Env) staging(label string, size uint64, data []byte) (device.Buffer, error) {
	buf, err := e.Device.NewBuffer(&device.BufferDesc{
		Label:       label + " staging",
		Size:        size,
		Usage:       copySrcUsage,
		HostVisible: true,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create %s staging buffer: %w", label, err)
	}
	copy(buf.Mapped(), data)
	if err := e.Device.FlushMapped(buf, 0, size); err != nil {
		e.Device.DestroyBuffer(buf)
		return nil, fmt.Errorf("resource: flush %s staging buffer: %w", label, err)
	}
	return buf, nil
}

// submitCopy records the copies made by record into a copy list, submits
// it and waits for completion. The list is returned to its source on every
// path.
func (e *Env) submitCopy(label string, record func(l *command.List) error) error {
	if e.Commands == nil {
		return ErrNoCommands
	}
	s, err := command.Scope(e.Commands, device.CommandCopy)
	if err != nil {
		return fmt.Errorf("resource: acquire copy list for %s: %w", label, err)
	}
	defer func() {
		if err := s.Release(); err != nil {
			e.logger().Warn("resource: recycle copy list, retrying after completion", "label", label, "err", err)
			s.ReleaseWhenDone(func(err error) {
				e.logger().Warn("resource: recycle copy list", "label", label, "err", err)
			})
		}
	}()

	l := s.List()
	if err := l.Begin(); err != nil {
		return err
	}
	if err := record(l); err != nil {
		return fmt.Errorf("resource: record %s upload: %w", label, err)
	}
	if err := l.ExecuteAsync(nil); err != nil {
		return fmt.Errorf("resource: submit %s upload: %w", label, err)
	}

	if e.FlushOnUpload {
		if err := e.Device.WaitIdle(e.waitTimeout()); err != nil {
			return fmt.Errorf("resource: flush after %s upload: %w", label, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.waitTimeout())
	defer cancel()
	if err := l.WaitForCompletion(ctx); err != nil {
		return fmt.Errorf("resource: wait for %s upload: %w", label, err)
	}
	return nil
}
