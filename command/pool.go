package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/gogpu/rhi/device"
)

// Pool is a fixed-size set of pre-built lists of one command type.
//
// Lists are checked out with GetCommand or Acquire and returned with
// RecycleCommand. A list is never idle while it is recording or executing.
// Pool is safe for concurrent use.
type Pool struct {
	dev  device.Device
	typ  device.CommandType
	size int
	opts options
	log  *slog.Logger

	mu sync.Mutex
	// sem counts idle lists: one permit per list in idle.
	sem         *semaphore.Weighted
	idle        []*List
	out         map[*List]bool // true while being recycled
	initialized bool
	closed      bool
}

// NewPool creates a pool of size lists. Call Init to build the lists.
func NewPool(dev device.Device, typ device.CommandType, size int, opts ...Option) (*Pool, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if size < 0 {
		return nil, fmt.Errorf("command: negative pool size %d", size)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("command: invalid command type %v", typ)
	}
	o := buildOptions(opts)
	return &Pool{
		dev:  dev,
		typ:  typ,
		size: size,
		opts: o,
		log:  o.logger,
		out:  make(map[*List]bool),
	}, nil
}

// Init creates every list of the pool. All lists start idle. On failure no
// list is kept and Init may be retried.
func (p *Pool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed:
		return ErrPoolClosed
	case p.initialized:
		return nil
	}

	idle := make([]*List, 0, p.size)
	for range p.size {
		l, err := newList(p.dev, p.typ, p.opts)
		if err != nil {
			return fmt.Errorf("command: init %v pool: %w", p.typ, err)
		}
		idle = append(idle, l)
	}
	p.idle = idle
	p.sem = semaphore.NewWeighted(int64(p.size))
	p.initialized = true
	p.log.Debug("command: pool initialized", "type", p.typ.String(), "size", p.size)
	return nil
}

// GetCommand checks out an idle list. It returns ErrPoolExhausted when
// every list is checked out.
func (p *Pool) GetCommand() (*List, error) {
	sem, err := p.semaphore()
	if err != nil {
		return nil, err
	}
	if !sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %v pool of %d", ErrPoolExhausted, p.typ, p.size)
	}
	return p.take()
}

// Acquire checks out an idle list, waiting for one to be recycled until
// ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*List, error) {
	sem, err := p.semaphore()
	if err != nil {
		return nil, err
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v pool: %w", ErrPoolExhausted, p.typ, err)
	}
	return p.take()
}

func (p *Pool) semaphore() (*semaphore.Weighted, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrPoolClosed
	case !p.initialized:
		return nil, ErrNotInitialized
	}
	return p.sem, nil
}

// take pops an idle list. The caller holds one semaphore permit.
func (p *Pool) take() (*List, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	n := len(p.idle)
	l := p.idle[n-1]
	p.idle[n-1] = nil
	p.idle = p.idle[:n-1]
	p.out[l] = false
	p.log.Debug("command: list checked out", "list", l.ID(), "type", p.typ.String(), "idle", len(p.idle))
	return l, nil
}

// RecycleCommand returns a checked-out list. Recording lists are closed and
// discarded, executing lists are waited for with the pool's wait timeout.
// The list is reset before it becomes idle. If an executing list does not
// finish in time the error is returned and the list stays checked out.
func (p *Pool) RecycleCommand(l *List) error {
	if l == nil {
		return ErrNotCheckedOut
	}
	p.mu.Lock()
	recycling, ok := p.out[l]
	if !ok || recycling {
		p.mu.Unlock()
		return fmt.Errorf("%w: list %d", ErrNotCheckedOut, l.ID())
	}
	p.out[l] = true
	p.mu.Unlock()

	err := l.waitIdle()
	if err == nil {
		err = l.Reset()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.out[l] = false
		p.log.Warn("command: recycle failed", "list", l.ID(), "type", p.typ.String(), "err", err)
		return fmt.Errorf("command: recycle list %d: %w", l.ID(), err)
	}
	delete(p.out, l)
	if p.closed {
		return nil
	}
	p.idle = append(p.idle, l)
	p.sem.Release(1)
	p.log.Debug("command: list recycled", "list", l.ID(), "type", p.typ.String(), "idle", len(p.idle))
	return nil
}

// Type returns the command type of the pool's lists.
func (p *Pool) Type() device.CommandType { return p.typ }

// Size returns the fixed number of lists.
func (p *Pool) Size() int { return p.size }

// Idle returns the number of idle lists.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Outstanding returns the number of checked-out lists.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.out)
}

// Close releases the idle lists. Lists still checked out are dropped when
// recycled, and ErrListsOutstanding reports them. Waiters in Acquire are
// released only by their context.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, l := range p.idle {
		if err := l.Reset(); err != nil {
			p.log.Warn("command: reset at close", "list", l.ID(), "err", err)
		}
	}
	p.idle = nil
	if n := len(p.out); n > 0 {
		p.log.Warn("command: pool closed with lists checked out", "type", p.typ.String(), "count", n)
		return fmt.Errorf("%w: %d %v lists", ErrListsOutstanding, n, p.typ)
	}
	p.log.Debug("command: pool closed", "type", p.typ.String())
	return nil
}
