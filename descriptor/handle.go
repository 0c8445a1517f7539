package descriptor

import "fmt"

// HeapKind identifies a descriptor heap.
type HeapKind uint8

// Heap kinds.
const (
	HeapCBVSRVUAV HeapKind = iota
	HeapSampler
	HeapRTV
	HeapDSV

	heapKindCount
)

// HeapKinds returns every heap kind in declaration order.
func HeapKinds() []HeapKind {
	return []HeapKind{HeapCBVSRVUAV, HeapSampler, HeapRTV, HeapDSV}
}

// String returns the heap kind name.
func (k HeapKind) String() string {
	switch k {
	case HeapCBVSRVUAV:
		return "CBV_SRV_UAV"
	case HeapSampler:
		return "Sampler"
	case HeapRTV:
		return "RTV"
	case HeapDSV:
		return "DSV"
	}
	return fmt.Sprintf("HeapKind(%d)", uint8(k))
}

// ViewKind is the kind of view created for a resource.
type ViewKind uint8

// View kinds.
const (
	ViewCBV ViewKind = iota
	ViewSRV
	ViewUAV
	ViewRTV
	ViewDSV

	// ViewSampler names the sampler heap. Samplers are not views of a
	// resource, so View and CreateViews reject it; sampler slots are
	// allocated directly from the HeapSampler heap.
	ViewSampler
)

// Heap returns the heap kind views of this kind live in.
func (k ViewKind) Heap() HeapKind {
	switch k {
	case ViewRTV:
		return HeapRTV
	case ViewDSV:
		return HeapDSV
	case ViewSampler:
		return HeapSampler
	}
	return HeapCBVSRVUAV
}

// String returns the view kind name.
func (k ViewKind) String() string {
	switch k {
	case ViewCBV:
		return "CBV"
	case ViewSRV:
		return "SRV"
	case ViewUAV:
		return "UAV"
	case ViewRTV:
		return "RTV"
	case ViewDSV:
		return "DSV"
	case ViewSampler:
		return "Sampler"
	}
	return fmt.Sprintf("ViewKind(%d)", uint8(k))
}

// Handle identifies one descriptor slot.
type Handle struct {
	Kind   HeapKind
	HeapID uint32
	Index  uint32
}

// String returns a string representation of the handle.
func (h Handle) String() string {
	return fmt.Sprintf("%v#%d[%d]", h.Kind, h.HeapID, h.Index)
}

// Allocation is a contiguous run of descriptor slots in one heap.
// The zero Allocation is empty and not valid.
type Allocation struct {
	heap  *Heap
	start uint32
	count uint32
	// frame is the heap frame generation for frame allocations, 0 for
	// persistent ones.
	frame uint64
	// slice marks a sub-range made by Slice.
	slice bool
}

// Kind returns the heap kind of the allocation.
func (a Allocation) Kind() HeapKind {
	if a.heap == nil {
		return 0
	}
	return a.heap.kind
}

// Start returns the index of the first slot.
func (a Allocation) Start() uint32 { return a.start }

// Count returns the number of slots.
func (a Allocation) Count() uint32 { return a.count }

// IsFrame reports whether the allocation came from a per-frame region.
func (a Allocation) IsFrame() bool { return a.frame != 0 }

// Valid reports whether the allocation is non-empty and, for frame
// allocations, still belongs to the current frame.
func (a Allocation) Valid() bool {
	if a.heap == nil || a.count == 0 {
		return false
	}
	return a.frame == 0 || a.frame == a.heap.generation()
}

// At returns the handle of slot i. ok is false when i is out of range.
func (a Allocation) At(i uint32) (Handle, bool) {
	if a.heap == nil || i >= a.count {
		return Handle{}, false
	}
	return Handle{Kind: a.heap.kind, HeapID: a.heap.id, Index: a.start + i}, true
}

// Handle converts a single-slot allocation to its handle.
func (a Allocation) Handle() (Handle, bool) {
	if a.count != 1 {
		return Handle{}, false
	}
	return a.At(0)
}

// Slice returns the n slots starting at offset as a new allocation sharing
// the same heap range. Slices cannot be freed on their own; Free rejects
// them with ErrInvalidAllocation.
func (a Allocation) Slice(offset, n uint32) (Allocation, error) {
	if n == 0 || offset >= a.count || n > a.count-offset {
		return Allocation{}, fmt.Errorf("%w: slice [%d:%d] of %d", ErrOutOfRange, offset, offset+n, a.count)
	}
	a.start += offset
	a.count = n
	a.slice = true
	return a, nil
}

// Handles returns every handle of the allocation in index order.
func (a Allocation) Handles() []Handle {
	out := make([]Handle, 0, a.count)
	for i := range a.count {
		h, _ := a.At(i)
		out = append(out, h)
	}
	return out
}

// String returns a string representation of the allocation.
func (a Allocation) String() string {
	if a.heap == nil {
		return "Allocation(empty)"
	}
	return fmt.Sprintf("Allocation(%v#%d [%d:%d])", a.heap.kind, a.heap.id, a.start, a.start+a.count)
}
