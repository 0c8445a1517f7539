package descriptor

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// nextHeapID numbers heaps for the whole process.
var nextHeapID atomic.Uint32

// span is a free run of slots.
type span struct {
	start, count uint32
}

// Heap is a fixed-size descriptor heap split into a persistent region and a
// per-frame region.
//
// The persistent region [0, Persistent) is managed by a first-fit free list
// that coalesces adjacent runs on Free. The frame region [Persistent, Size)
// is a linear allocator reset by BeginFrame.
//
// Heap is safe for concurrent use.
type Heap struct {
	kind       HeapKind
	id         uint32
	size       uint32
	persistent uint32

	mu   sync.Mutex
	free []span // sorted by start, never adjacent
	used uint32

	frameNext uint32
	framePeak uint32
	inFrame   bool
	gen       atomic.Uint64
}

// NewHeap creates a heap of size slots whose last frameSize slots form the
// per-frame region.
func NewHeap(kind HeapKind, size, frameSize uint32) (*Heap, error) {
	if kind >= heapKindCount {
		return nil, fmt.Errorf("descriptor: invalid heap kind %v", kind)
	}
	if frameSize > size {
		return nil, fmt.Errorf("descriptor: %v frame region %d larger than heap %d", kind, frameSize, size)
	}
	h := &Heap{
		kind:       kind,
		id:         nextHeapID.Add(1),
		size:       size,
		persistent: size - frameSize,
	}
	if h.persistent > 0 {
		h.free = []span{{0, h.persistent}}
	}
	return h, nil
}

// Kind returns the heap kind.
func (h *Heap) Kind() HeapKind { return h.kind }

// ID returns the process-unique heap identity.
func (h *Heap) ID() uint32 { return h.id }

// Size returns the total number of slots.
func (h *Heap) Size() uint32 { return h.size }

// Allocate reserves n contiguous slots from the persistent region.
func (h *Heap) Allocate(n uint32) (Allocation, error) {
	if n == 0 {
		return Allocation{}, fmt.Errorf("descriptor: allocate 0 slots from %v heap", h.kind)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.free {
		if s.count < n {
			continue
		}
		a := Allocation{heap: h, start: s.start, count: n}
		if s.count == n {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = span{s.start + n, s.count - n}
		}
		h.used += n
		return a, nil
	}
	return Allocation{}, fmt.Errorf("%w: %v heap: no run of %d in %d free slots",
		ErrHeapExhausted, h.kind, n, h.persistent-h.used)
}

// Free returns a persistent allocation to the heap. Freeing a frame
// allocation, a slice, a foreign allocation or a range that is already free
// fails with ErrInvalidAllocation.
func (h *Heap) Free(a Allocation) error {
	if a.slice {
		return fmt.Errorf("%w: %v is a slice of a larger allocation", ErrInvalidAllocation, a)
	}
	if a.heap != h || a.frame != 0 || a.count == 0 || a.start+a.count > h.persistent {
		return fmt.Errorf("%w: %v", ErrInvalidAllocation, a)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].start >= a.start })
	end := a.start + a.count
	if i < len(h.free) && h.free[i].start < end {
		return fmt.Errorf("%w: %v overlaps a free run", ErrInvalidAllocation, a)
	}
	if i > 0 && h.free[i-1].start+h.free[i-1].count > a.start {
		return fmt.Errorf("%w: %v overlaps a free run", ErrInvalidAllocation, a)
	}

	mergePrev := i > 0 && h.free[i-1].start+h.free[i-1].count == a.start
	mergeNext := i < len(h.free) && h.free[i].start == end
	switch {
	case mergePrev && mergeNext:
		h.free[i-1].count += a.count + h.free[i].count
		h.free = append(h.free[:i], h.free[i+1:]...)
	case mergePrev:
		h.free[i-1].count += a.count
	case mergeNext:
		h.free[i] = span{a.start, a.count + h.free[i].count}
	default:
		h.free = append(h.free, span{})
		copy(h.free[i+1:], h.free[i:])
		h.free[i] = span{a.start, a.count}
	}
	h.used -= a.count
	return nil
}

// BeginFrame starts a new frame: every frame allocation of the previous
// frame becomes invalid and the frame region is empty again.
func (h *Heap) BeginFrame() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frameNext = 0
	h.inFrame = true
	h.gen.Add(1)
}

// EndFrame closes the current frame. Allocations made in it stay valid
// until the next BeginFrame.
func (h *Heap) EndFrame() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inFrame = false
}

// AllocateFrame reserves n contiguous slots from the frame region.
func (h *Heap) AllocateFrame(n uint32) (Allocation, error) {
	if n == 0 {
		return Allocation{}, fmt.Errorf("descriptor: allocate 0 frame slots from %v heap", h.kind)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.inFrame {
		return Allocation{}, ErrNoFrame
	}
	capacity := h.size - h.persistent
	if n > capacity-h.frameNext {
		return Allocation{}, fmt.Errorf("%w: %v frame region: %d of %d slots left",
			ErrHeapExhausted, h.kind, capacity-h.frameNext, capacity)
	}
	a := Allocation{heap: h, start: h.persistent + h.frameNext, count: n, frame: h.gen.Load()}
	h.frameNext += n
	h.framePeak = max(h.framePeak, h.frameNext)
	return a, nil
}

func (h *Heap) generation() uint64 {
	return h.gen.Load()
}

// HeapStats contains heap usage counters.
type HeapStats struct {
	Kind HeapKind
	// Persistent is the size of the persistent region.
	Persistent uint32
	// Used is the number of allocated persistent slots.
	Used uint32
	// FreeRuns is the number of free runs in the persistent region.
	FreeRuns int
	// LargestFree is the longest free run.
	LargestFree uint32
	// Frame is the size of the frame region.
	Frame uint32
	// FrameUsed is the number of slots allocated in the current frame.
	FrameUsed uint32
	// FramePeak is the largest FrameUsed seen.
	FramePeak uint32
}

// Stats returns usage counters.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	var largest uint32
	for _, s := range h.free {
		largest = max(largest, s.count)
	}
	return HeapStats{
		Kind:        h.kind,
		Persistent:  h.persistent,
		Used:        h.used,
		FreeRuns:    len(h.free),
		LargestFree: largest,
		Frame:       h.size - h.persistent,
		FrameUsed:   h.frameNext,
		FramePeak:   h.framePeak,
	}
}
