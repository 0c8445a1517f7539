package command

import (
	"sync/atomic"

	"github.com/gogpu/rhi/device"
)

// noCopy lets go vet's copylocks check flag copies of a Scoped.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Scoped holds a list checked out from a Source and returns it exactly
// once. Typical use:
//
//	s, err := command.Scope(mgr, device.CommandCopy)
//	if err != nil {
//		return err
//	}
//	defer s.Release()
//
// Release may be called early; later calls, including the deferred one,
// do nothing. Ownership moves to another Scoped with Move.
type Scoped struct {
	_    noCopy
	src  Source
	list atomic.Pointer[List]
}

// Scope checks out a list of type t from src.
func Scope(src Source, t device.CommandType) (*Scoped, error) {
	l, err := src.Get(t)
	if err != nil {
		return nil, err
	}
	s := &Scoped{src: src}
	s.list.Store(l)
	return s, nil
}

// List returns the held list, or nil after Release or Move.
func (s *Scoped) List() *List {
	return s.list.Load()
}

// Native returns the backend handle of the held list.
func (s *Scoped) Native() device.Handle {
	if l := s.list.Load(); l != nil {
		return l.Native()
	}
	return device.Handle{}
}

// Release returns the list to its source. Only the first successful call
// returns it. When the source refuses the list, for example because it is
// still executing past the wait timeout, the Scoped keeps holding it and a
// later Release or ReleaseWhenDone retries.
func (s *Scoped) Release() error {
	l := s.list.Swap(nil)
	if l == nil {
		return nil
	}
	if err := s.src.Recycle(l); err != nil {
		s.list.CompareAndSwap(nil, l)
		return err
	}
	return nil
}

// ReleaseWhenDone returns the held list once its current execution has
// finished, without blocking the caller. A list that is not executing is
// released immediately. onErr, if not nil, receives a failed release.
func (s *Scoped) ReleaseWhenDone(onErr func(error)) {
	l := s.list.Load()
	if l == nil {
		return
	}
	release := func() {
		if err := s.Release(); err != nil && onErr != nil {
			onErr(err)
		}
	}
	done := l.Done()
	if done == nil || l.State() != StateExecuting {
		release()
		return
	}
	go func() {
		<-done
		release()
	}()
}

// Move transfers the held list to a new Scoped and leaves s empty.
func (s *Scoped) Move() *Scoped {
	moved := &Scoped{src: s.src}
	moved.list.Store(s.list.Swap(nil))
	return moved
}
