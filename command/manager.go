package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/rhi/device"
)

// Source hands out lists by command type and takes them back.
type Source interface {
	Get(t device.CommandType) (*List, error)
	Recycle(l *List) error
}

// Manager owns one Pool per command type.
type Manager struct {
	pools map[device.CommandType]*Pool
}

var _ Source = (*Manager)(nil)

// NewManager creates and initializes a pool for every command type. sizes
// overrides DefaultPoolSize per type.
func NewManager(dev device.Device, sizes map[device.CommandType]int, opts ...Option) (*Manager, error) {
	m := &Manager{pools: make(map[device.CommandType]*Pool)}
	for _, t := range device.CommandTypes() {
		size, ok := sizes[t]
		if !ok {
			size = DefaultPoolSize
		}
		p, err := NewPool(dev, t, size, opts...)
		if err == nil {
			err = p.Init()
		}
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m.pools[t] = p
	}
	return m, nil
}

// Pool returns the pool of a command type.
func (m *Manager) Pool(t device.CommandType) (*Pool, bool) {
	p, ok := m.pools[t]
	return p, ok
}

// Get implements Source. It fails with ErrPoolExhausted instead of waiting.
func (m *Manager) Get(t device.CommandType) (*List, error) {
	p, ok := m.pools[t]
	if !ok {
		return nil, fmt.Errorf("command: no pool for %v", t)
	}
	return p.GetCommand()
}

// Acquire waits for a list of type t until ctx is done.
func (m *Manager) Acquire(ctx context.Context, t device.CommandType) (*List, error) {
	p, ok := m.pools[t]
	if !ok {
		return nil, fmt.Errorf("command: no pool for %v", t)
	}
	return p.Acquire(ctx)
}

// Recycle implements Source.
func (m *Manager) Recycle(l *List) error {
	if l == nil {
		return ErrNotCheckedOut
	}
	p, ok := m.pools[l.Type()]
	if !ok {
		return fmt.Errorf("%w: list %d", ErrNotCheckedOut, l.ID())
	}
	return p.RecycleCommand(l)
}

// Close closes every pool.
func (m *Manager) Close() error {
	var errs []error
	for _, t := range device.CommandTypes() {
		if p, ok := m.pools[t]; ok {
			errs = append(errs, p.Close())
		}
	}
	return errors.Join(errs...)
}
