package pagedb

import "testing"

func newTestAllocator(t *testing.T, nPages int) *Allocator {
	t.Helper()
	pager := NewPager(NewMemBacking(), 4096, 0)
	if err := pager.ExtendTo(nPages); err != nil {
		t.Fatalf("ExtendTo: %v", err)
	}
	alloc := NewAllocator(pager, nPages)
	if err := alloc.Populate(); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	return alloc
}

func TestAllocator_ReservedPagesMarked(t *testing.T) {
	alloc := newTestAllocator(t, 64)
	for i := 0; i <= alloc.NBitmapPages(); i++ {
		if !alloc.IsAllocated(PageID(i)) {
			t.Errorf("reserved page %d should be allocated", i)
		}
	}
	if alloc.IsAllocated(alloc.FirstAllocatable()) {
		t.Errorf("first allocatable page %d should not be allocated yet", alloc.FirstAllocatable())
	}
}

func TestAllocator_AllocateFree(t *testing.T) {
	alloc := newTestAllocator(t, 64)

	first, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if first != alloc.FirstAllocatable() {
		t.Errorf("first allocated page = %d, want %d", first, alloc.FirstAllocatable())
	}

	second, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if second != first+1 {
		t.Errorf("second allocated page = %d, want %d", second, first+1)
	}

	if err := alloc.Free(first); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if alloc.IsAllocated(first) {
		t.Errorf("page %d should be free after Free", first)
	}

	third, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if third != first {
		t.Errorf("Allocate after Free = %d, want reused page %d", third, first)
	}
}

func TestAllocator_DoubleFree(t *testing.T) {
	alloc := newTestAllocator(t, 64)
	id, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := alloc.Free(id); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := alloc.Free(id); err == nil {
		t.Errorf("second Free should fail with ErrDoubleFree")
	}
}

func TestAllocator_NoSpace(t *testing.T) {
	alloc := newTestAllocator(t, 10)
	for {
		if _, err := alloc.Allocate(); err != nil {
			return
		}
	}
}

func TestAllocator_LoadRoundTrip(t *testing.T) {
	pager := NewPager(NewMemBacking(), 4096, 0)
	if err := pager.ExtendTo(64); err != nil {
		t.Fatalf("ExtendTo: %v", err)
	}
	alloc := NewAllocator(pager, 64)
	if err := alloc.Populate(); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	id, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	reloaded := NewAllocator(pager, 64)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.IsAllocated(id) {
		t.Errorf("reloaded allocator should see page %d as allocated", id)
	}
}
