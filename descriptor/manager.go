package descriptor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/rhi/device"
	"github.com/gogpu/rhi/internal/cache"
	"github.com/gogpu/rhi/internal/logging"
)

// Default heap sizes.
const (
	DefaultCBVSRVUAVHeapSize = 4096
	DefaultSamplerHeapSize   = 256
	DefaultRTVHeapSize       = 256
	DefaultDSVHeapSize       = 256

	// DefaultFrameDivisor sets the default frame region to a quarter of
	// each heap.
	DefaultFrameDivisor = 4
)

// HeapConfig sizes one heap.
type HeapConfig struct {
	// Size is the total number of slots.
	Size uint32
	// Frame is the number of slots reserved for per-frame allocations.
	Frame uint32
}

// Config configures a ViewManager.
type Config struct {
	// Heaps sizes each heap kind. Missing kinds use the defaults.
	Heaps map[HeapKind]HeapConfig

	// CacheLimit is the soft limit of cached persistent views. Views
	// evicted from the cache release their heap slot and backend view.
	// 0 means unlimited.
	CacheLimit int

	// Logger receives diagnostics. Nil means silent.
	Logger *slog.Logger
}

// DefaultHeapConfig returns the default size of a heap kind.
func DefaultHeapConfig(kind HeapKind) HeapConfig {
	var size uint32
	switch kind {
	case HeapCBVSRVUAV:
		size = DefaultCBVSRVUAVHeapSize
	case HeapSampler:
		size = DefaultSamplerHeapSize
	case HeapRTV:
		size = DefaultRTVHeapSize
	case HeapDSV:
		size = DefaultDSVHeapSize
	}
	return HeapConfig{Size: size, Frame: size / DefaultFrameDivisor}
}

// viewKey identifies a cached persistent view.
type viewKey struct {
	id   uuid.UUID
	kind ViewKind
}

// slot is the content of one descriptor slot.
type slot struct {
	id   uuid.UUID
	view device.View
}

// ViewManager allocates descriptor slots and caches views per resource.
//
// Persistent views are cached by (resource id, view kind): repeated View
// calls return the same allocation without creating another backend view.
// Batched views from CreateViews occupy one contiguous run and are returned
// with Free. Frame views live in each heap's frame region and are destroyed
// at the next BeginFrame. Release purges every view of a resource.
//
// ViewManager is safe for concurrent use.
type ViewManager struct {
	dev   device.Device
	log   *slog.Logger
	heaps [heapKindCount]*Heap

	// views maps cached persistent views to their single-slot allocation.
	// Only View inserts, with mu held, so evict runs with mu held.
	views *cache.Cache[viewKey, Allocation]

	mu      sync.Mutex
	tables  [heapKindCount][]slot
	batches map[Handle]Allocation // keyed by first handle
	inFrame bool
	live    map[uuid.UUID]func() bool
	closed  bool
}

// NewViewManager creates a view manager on dev with one heap per kind.
func NewViewManager(dev device.Device, cfg Config) (*ViewManager, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	vm := &ViewManager{
		dev:     dev,
		log:     logging.OrNop(cfg.Logger),
		batches: make(map[Handle]Allocation),
		live:    make(map[uuid.UUID]func() bool),
	}
	for _, kind := range HeapKinds() {
		hc, ok := cfg.Heaps[kind]
		if !ok {
			hc = DefaultHeapConfig(kind)
		}
		h, err := NewHeap(kind, hc.Size, hc.Frame)
		if err != nil {
			return nil, err
		}
		vm.heaps[kind] = h
		vm.tables[kind] = make([]slot, hc.Size)
	}
	vm.views = cache.NewWithEvict(cfg.CacheLimit, vm.evict)
	vm.log.Debug("descriptor: view manager created",
		"cbv_srv_uav", vm.heaps[HeapCBVSRVUAV].Size(), "cache_limit", cfg.CacheLimit)
	return vm, nil
}

// evict releases a view dropped by the cache soft limit.
func (vm *ViewManager) evict(k viewKey, a Allocation) {
	vm.log.Debug("descriptor: view evicted", "id", k.id, "kind", k.kind.String())
	vm.clearRange(a)
	vm.free(a)
}

func (vm *ViewManager) free(a Allocation) {
	if err := a.heap.Free(a); err != nil {
		vm.log.Warn("descriptor: free slots", "alloc", a.String(), "err", err)
	}
}

// clearRange destroys the views stored in the slots of a. Caller holds
// vm.mu.
func (vm *ViewManager) clearRange(a Allocation) int {
	table := vm.tables[a.heap.kind][a.start : a.start+a.count]
	n := 0
	for i := range table {
		if table[i].view != nil {
			vm.dev.DestroyView(table[i].view)
			n++
		}
		table[i] = slot{}
	}
	return n
}

// Heap returns the heap of a kind.
func (vm *ViewManager) Heap(kind HeapKind) (*Heap, bool) {
	if kind >= heapKindCount {
		return nil, false
	}
	return vm.heaps[kind], true
}

// View returns the persistent single-slot allocation holding the kind view
// of res, creating the backend view on the first request.
func (vm *ViewManager) View(res Resource, kind ViewKind) (Allocation, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed {
		return Allocation{}, ErrClosed
	}

	key := viewKey{res.ID(), kind}
	if a, ok := vm.views.Get(key); ok {
		return a, nil
	}
	alloc, err := vm.heaps[kind.Heap()].Allocate(1)
	if err != nil {
		return Allocation{}, err
	}
	if err := vm.fill(alloc, []Resource{res}, kind); err != nil {
		vm.free(alloc)
		return Allocation{}, err
	}
	vm.views.Set(key, alloc)
	vm.log.Debug("descriptor: view created", "id", key.id, "kind", kind.String(), "slot", alloc.start)
	return alloc, nil
}

// Lookup returns the cached persistent view of (id, kind) without creating
// one.
func (vm *ViewManager) Lookup(id uuid.UUID, kind ViewKind) (Allocation, bool) {
	return vm.views.Peek(viewKey{id, kind})
}

// CreateViews creates kind views for every resource in one contiguous
// allocation. Slot i holds the view of resources[i]. The allocation is
// returned with Free.
func (vm *ViewManager) CreateViews(resources []Resource, kind ViewKind) (Allocation, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed {
		return Allocation{}, ErrClosed
	}

	alloc, err := vm.heaps[kind.Heap()].Allocate(uint32(len(resources)))
	if err != nil {
		return Allocation{}, err
	}
	if err := vm.fill(alloc, resources, kind); err != nil {
		vm.free(alloc)
		return Allocation{}, err
	}
	first, _ := alloc.At(0)
	vm.batches[first] = alloc
	vm.log.Debug("descriptor: views created", "kind", kind.String(), "count", len(resources), "start", alloc.start)
	return alloc, nil
}

// Free destroys the views of an allocation returned by CreateViews and
// returns its slots to the heap.
func (vm *ViewManager) Free(a Allocation) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	first, ok := a.At(0)
	if !ok || a.slice {
		return fmt.Errorf("%w: %v", ErrInvalidAllocation, a)
	}
	b, ok := vm.batches[first]
	if !ok || b.count != a.count {
		return fmt.Errorf("%w: %v was not created by CreateViews", ErrInvalidAllocation, a)
	}
	delete(vm.batches, first)
	vm.clearRange(b)
	return b.heap.Free(b)
}

// BeginFrame starts a frame on every heap. Views created by FrameViews in
// the previous frame are destroyed and their allocations become invalid.
func (vm *ViewManager) BeginFrame() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for _, h := range vm.heaps {
		table := vm.tables[h.kind]
		vm.clearRange(Allocation{heap: h, start: h.persistent, count: uint32(len(table)) - h.persistent})
		h.BeginFrame()
	}
	vm.inFrame = true
}

// EndFrame closes the frame. Frame views stay usable until BeginFrame.
func (vm *ViewManager) EndFrame() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for _, h := range vm.heaps {
		h.EndFrame()
	}
	vm.inFrame = false
}

// FrameViews creates kind views for resources in the frame region. They
// are valid only until the next BeginFrame.
func (vm *ViewManager) FrameViews(resources []Resource, kind ViewKind) (Allocation, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	switch {
	case vm.closed:
		return Allocation{}, ErrClosed
	case !vm.inFrame:
		return Allocation{}, ErrNoFrame
	}

	alloc, err := vm.heaps[kind.Heap()].AllocateFrame(uint32(len(resources)))
	if err != nil {
		return Allocation{}, err
	}
	// On failure the slots stay consumed until the next frame.
	if err := vm.fill(alloc, resources, kind); err != nil {
		return Allocation{}, err
	}
	return alloc, nil
}

// fill creates one view per resource into the slots of a. On failure the
// views created so far are destroyed. Caller holds vm.mu.
func (vm *ViewManager) fill(a Allocation, resources []Resource, kind ViewKind) error {
	table := vm.tables[a.heap.kind][a.start : a.start+a.count]
	for i, res := range resources {
		desc, err := viewDesc(res, kind)
		var view device.View
		if err == nil {
			view, err = vm.dev.NewView(&desc)
		}
		if err != nil {
			vm.clearRange(a)
			return fmt.Errorf("descriptor: %v view of %s: %w", kind, res.ID(), err)
		}
		table[i] = slot{id: res.ID(), view: view}
	}
	for _, res := range resources {
		if c, ok := res.(Collectable); ok {
			if _, seen := vm.live[res.ID()]; !seen {
				vm.live[res.ID()] = c.Liveness()
			}
		}
	}
	return nil
}

// Release purges every view of the resource: cached entries are dropped,
// and every slot holding one of its views is cleared, including batched and
// frame slots. It returns the number of views destroyed.
func (vm *ViewManager) Release(id uuid.UUID) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.release(id)
}

func (vm *ViewManager) release(id uuid.UUID) int {
	n := 0
	for _, a := range vm.views.DeleteFunc(func(k viewKey, _ Allocation) bool { return k.id == id }) {
		n += vm.clearRange(a)
		vm.free(a)
	}
	for k := range vm.tables {
		table := vm.tables[k]
		for i := range table {
			if table[i].id == id && table[i].view != nil {
				vm.dev.DestroyView(table[i].view)
				table[i] = slot{}
				n++
			}
		}
	}
	delete(vm.live, id)
	if n > 0 {
		vm.log.Debug("descriptor: views released", "id", id, "count", n)
	}
	return n
}

// SlotView returns the backend view stored in the slot of h, or nil for an
// empty slot or a handle of another manager.
func (vm *ViewManager) SlotView(h Handle) device.View {
	if h.Kind >= heapKindCount || vm.heaps[h.Kind].id != h.HeapID {
		return nil
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()

	table := vm.tables[h.Kind]
	if int(h.Index) >= len(table) {
		return nil
	}
	return table[h.Index].view
}

// Collect releases the views of every collectable resource that has been
// garbage collected and returns the number of resources reclaimed.
func (vm *ViewManager) Collect() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	reclaimed := 0
	for id, alive := range vm.live {
		if alive() {
			continue
		}
		views := vm.release(id)
		reclaimed++
		vm.log.Debug("descriptor: collected views of unreachable resource", "id", id, "views", views)
	}
	return reclaimed
}

// Stats contains view manager counters.
type Stats struct {
	Heaps []HeapStats
	// Cached is the number of cached persistent views.
	Cached int
	// Evictions is the number of views dropped by the cache soft limit.
	Evictions uint64
	// Batches is the number of live CreateViews allocations.
	Batches int
	// Tracked is the number of collectable resources being watched.
	Tracked int
}

// Stats returns usage counters.
func (vm *ViewManager) Stats() Stats {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	cs := vm.views.Stats()
	st := Stats{
		Cached:    cs.Len,
		Evictions: cs.Evictions,
		Batches:   len(vm.batches),
		Tracked:   len(vm.live),
	}
	for _, h := range vm.heaps {
		st.Heaps = append(st.Heaps, h.Stats())
	}
	return st
}

// Close destroys every view. Allocations handed out become meaningless and
// further view creation fails with ErrClosed. Close is idempotent.
func (vm *ViewManager) Close() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed {
		return nil
	}
	vm.closed = true

	vm.views.Clear()
	destroyed := 0
	for _, h := range vm.heaps {
		destroyed += vm.clearRange(Allocation{heap: h, count: h.size})
	}
	clear(vm.batches)
	clear(vm.live)
	vm.log.Debug("descriptor: view manager closed", "views", destroyed)
	return nil
}
