// Package descriptor allocates descriptor slots and caches resource views.
//
// Every heap kind has a fixed number of slots split into a persistent
// region, managed by a coalescing first-fit free list, and a frame region
// that is reset at the start of each frame:
//
//	vm, _ := descriptor.NewViewManager(dev, descriptor.Config{})
//	srv, _ := vm.View(texture, descriptor.ViewSRV) // cached per resource
//	table, _ := vm.CreateViews(buffers, descriptor.ViewCBV)
//	defer vm.Free(table)
//
//	vm.BeginFrame()
//	transient, _ := vm.FrameViews(targets, descriptor.ViewRTV)
//	vm.EndFrame()
//
// Multi-slot allocations are always contiguous, so slot i of an allocation
// is its start index plus i. Resources notify the manager through
// ViewReleaser when they are destroyed; resources implementing Collectable
// are also reclaimed by Collect once they become unreachable.
package descriptor
