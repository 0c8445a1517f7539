package descriptor

import (
	"errors"
	"testing"
)

func newTestHeap(t *testing.T, size, frame uint32) *Heap {
	t.Helper()
	h, err := NewHeap(HeapCBVSRVUAV, size, frame)
	if err != nil {
		t.Fatalf("NewHeap error: %v", err)
	}
	return h
}

func TestHeapAllocateContiguous(t *testing.T) {
	h := newTestHeap(t, 16, 0)

	a, err := h.Allocate(5)
	if err != nil {
		t.Fatalf("Allocate error: %v", err)
	}
	if a.Count() != 5 || a.Start() != 0 || !a.Valid() {
		t.Fatalf("allocation = %v", a)
	}

	seen := make(map[Handle]bool)
	for i := range a.Count() {
		s, err := a.Slice(i, 1)
		if err != nil {
			t.Fatalf("Slice(%d, 1) error: %v", i, err)
		}
		hd, ok := s.Handle()
		if !ok {
			t.Fatalf("Slice(%d, 1) has no single handle", i)
		}
		if hd.Index != a.Start()+i || hd.HeapID != h.ID() || hd.Kind != HeapCBVSRVUAV {
			t.Errorf("slot %d handle = %v", i, hd)
		}
		if seen[hd] {
			t.Errorf("slot %d handle %v repeated", i, hd)
		}
		seen[hd] = true
	}
	if len(seen) != 5 {
		t.Errorf("slices cover %d handles, want 5", len(seen))
	}

	if _, ok := a.Handle(); ok {
		t.Error("Handle() of 5-slot allocation succeeded")
	}
	if _, err := a.Slice(4, 2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Slice(4, 2) error = %v, want ErrOutOfRange", err)
	}
	if _, err := a.Slice(0, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Slice(0, 0) error = %v, want ErrOutOfRange", err)
	}
}

func TestHeapFirstFitAndCoalesce(t *testing.T) {
	h := newTestHeap(t, 10, 0)

	a, _ := h.Allocate(3) // [0,3)
	b, _ := h.Allocate(3) // [3,6)
	c, _ := h.Allocate(3) // [6,9)

	if _, err := h.Allocate(2); !errors.Is(err, ErrHeapExhausted) {
		t.Fatalf("Allocate(2) with 1 free error = %v, want ErrHeapExhausted", err)
	}

	if err := h.Free(b); err != nil {
		t.Fatal(err)
	}
	// First fit reuses the hole left by b.
	d, err := h.Allocate(2)
	if err != nil || d.Start() != 3 {
		t.Fatalf("Allocate(2) = %v, %v; want start 3", d, err)
	}
	if err := h.Free(d); err != nil {
		t.Fatal(err)
	}

	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(c); err != nil {
		t.Fatal(err)
	}
	st := h.Stats()
	if st.FreeRuns != 1 || st.LargestFree != 10 || st.Used != 0 {
		t.Errorf("after freeing all: %+v, want one run of 10", st)
	}

	all, err := h.Allocate(10)
	if err != nil || all.Start() != 0 {
		t.Errorf("Allocate(10) after coalescing = %v, %v", all, err)
	}
}

func TestHeapFreeErrors(t *testing.T) {
	h := newTestHeap(t, 8, 4)
	other := newTestHeap(t, 8, 4)

	a, _ := h.Allocate(2)
	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(a); !errors.Is(err, ErrInvalidAllocation) {
		t.Errorf("double free error = %v, want ErrInvalidAllocation", err)
	}

	b, _ := other.Allocate(1)
	if err := h.Free(b); !errors.Is(err, ErrInvalidAllocation) {
		t.Errorf("foreign free error = %v, want ErrInvalidAllocation", err)
	}
	if err := h.Free(Allocation{}); !errors.Is(err, ErrInvalidAllocation) {
		t.Errorf("empty free error = %v, want ErrInvalidAllocation", err)
	}

	c, _ := h.Allocate(3)
	part, err := c.Slice(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Free(part); !errors.Is(err, ErrInvalidAllocation) {
		t.Errorf("slice free error = %v, want ErrInvalidAllocation", err)
	}
	if whole, _ := c.Slice(0, 3); h.Free(whole) == nil {
		t.Error("freeing a full-length slice succeeded")
	}
	if st := h.Stats(); st.Used != 3 {
		t.Errorf("used after rejected slice frees = %d, want 3", st.Used)
	}
	if err := h.Free(c); err != nil {
		t.Errorf("Free of the parent allocation error: %v", err)
	}

	h.BeginFrame()
	f, _ := h.AllocateFrame(1)
	if err := h.Free(f); !errors.Is(err, ErrInvalidAllocation) {
		t.Errorf("frame free error = %v, want ErrInvalidAllocation", err)
	}
}

func TestHeapFrameRegion(t *testing.T) {
	h := newTestHeap(t, 8, 4)

	if _, err := h.AllocateFrame(1); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("AllocateFrame outside frame error = %v, want ErrNoFrame", err)
	}

	h.BeginFrame()
	a, err := h.AllocateFrame(3)
	if err != nil {
		t.Fatal(err)
	}
	if a.Start() != 4 || !a.IsFrame() || !a.Valid() {
		t.Errorf("frame allocation = %v frame=%v valid=%v", a, a.IsFrame(), a.Valid())
	}
	if _, err := h.AllocateFrame(2); !errors.Is(err, ErrHeapExhausted) {
		t.Errorf("frame overflow error = %v, want ErrHeapExhausted", err)
	}
	h.EndFrame()
	if !a.Valid() {
		t.Error("frame allocation invalid right after EndFrame")
	}

	// Persistent region is untouched by frames.
	p, err := h.Allocate(4)
	if err != nil || p.Start() != 0 {
		t.Fatalf("persistent Allocate = %v, %v", p, err)
	}

	h.BeginFrame()
	if a.Valid() {
		t.Error("previous frame allocation still valid after BeginFrame")
	}
	b, err := h.AllocateFrame(4)
	if err != nil || b.Start() != 4 {
		t.Errorf("frame region not reset: %v, %v", b, err)
	}
	if !p.Valid() {
		t.Error("persistent allocation invalidated by BeginFrame")
	}
	if st := h.Stats(); st.FramePeak != 4 || st.FrameUsed != 4 || st.Frame != 4 {
		t.Errorf("frame stats = %+v", st)
	}
}

func TestNewHeapErrors(t *testing.T) {
	if _, err := NewHeap(HeapRTV, 4, 8); err == nil {
		t.Error("frame region larger than heap accepted")
	}
	if _, err := NewHeap(heapKindCount, 4, 0); err == nil {
		t.Error("invalid heap kind accepted")
	}
	h, _ := NewHeap(HeapDSV, 0, 0)
	if _, err := h.Allocate(1); !errors.Is(err, ErrHeapExhausted) {
		t.Errorf("empty heap Allocate error = %v, want ErrHeapExhausted", err)
	}
}

func TestViewKindHeap(t *testing.T) {
	tests := []struct {
		kind ViewKind
		heap HeapKind
	}{
		{ViewCBV, HeapCBVSRVUAV},
		{ViewSRV, HeapCBVSRVUAV},
		{ViewUAV, HeapCBVSRVUAV},
		{ViewRTV, HeapRTV},
		{ViewDSV, HeapDSV},
		{ViewSampler, HeapSampler},
	}
	for _, tt := range tests {
		if got := tt.kind.Heap(); got != tt.heap {
			t.Errorf("%v.Heap() = %v, want %v", tt.kind, got, tt.heap)
		}
	}
}
