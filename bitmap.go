package pagedb

import "fmt"

// Allocator owns the free/used bitmap for every page in the store (spec
// §4.2). It is held in memory and mirrored on disk across bitmap pages
// 1..B (B = ceil(nPages / (pageSize*8))). Bits 0..B inclusive are always
// set: page 0 is the metadata page, pages 1..B are the bitmap's own
// pages, and neither is ever handed out by Allocate.
type Allocator struct {
	pager    *Pager
	nPages   int
	nBitmap  int // B: number of bitmap pages
	reserved int // B+1: first allocatable page id
	bits     []byte
}

// NewAllocator computes the bitmap-page count for nPages pages of
// pageSize bytes each, without loading or populating anything yet.
func NewAllocator(pager *Pager, nPages int) *Allocator {
	pageSize := pager.PageSize()
	bitsPerPage := pageSize * 8
	nBitmap := (nPages + bitsPerPage - 1) / bitsPerPage
	if nBitmap < 1 {
		nBitmap = 1
	}
	return &Allocator{
		pager:    pager,
		nPages:   nPages,
		nBitmap:  nBitmap,
		reserved: nBitmap + 1,
		bits:     make([]byte, (nPages+7)/8),
	}
}

// NBitmapPages returns B, the count of bitmap pages (ids 1..B).
func (a *Allocator) NBitmapPages() int { return a.nBitmap }

// FirstAllocatable returns B+1, the first page id Allocate may return.
func (a *Allocator) FirstAllocatable() PageID { return PageID(a.reserved) }

func bitSet(bits []byte, i int) bool { return bits[i/8]&(1<<uint(i%8)) != 0 }
func bitMark(bits []byte, i int)     { bits[i/8] |= 1 << uint(i%8) }
func bitClear(bits []byte, i int)    { bits[i/8] &^= 1 << uint(i%8) }

// Populate zero-initializes the bitmap, marks the metadata + bitmap pages
// (0..B) permanently allocated, and persists it. Called once, when a
// fresh database is created.
func (a *Allocator) Populate() error {
	for i := range a.bits {
		a.bits[i] = 0
	}
	for i := 0; i <= a.nBitmap; i++ {
		bitMark(a.bits, i)
	}
	return a.Dump()
}

// Allocate finds the first clear bit at index >= FirstAllocatable, marks
// it, persists the whole bitmap, and returns its index. Per spec §7, the
// bitmap persist happens before Allocate returns — i.e. before the newly
// allocated page is externally observable.
func (a *Allocator) Allocate() (PageID, error) {
	for i := a.reserved; i < a.nPages; i++ {
		if !bitSet(a.bits, i) {
			bitMark(a.bits, i)
			if err := a.Dump(); err != nil {
				bitClear(a.bits, i)
				return 0, err
			}
			return PageID(i), nil
		}
	}
	return 0, fmt.Errorf("allocator: %w", ErrNoSpace)
}

// Free clears id's bit and persists the bitmap. Freeing an already-free
// page is ErrDoubleFree (spec §7): it indicates an engine bug, but this
// revision returns it rather than panicking so the façade can decide.
func (a *Allocator) Free(id PageID) error {
	i := int(id)
	if i < 0 || i >= a.nPages || !bitSet(a.bits, i) {
		return fmt.Errorf("allocator: free page %d: %w", id, ErrDoubleFree)
	}
	bitClear(a.bits, i)
	return a.Dump()
}

// IsAllocated reports whether id's bit is set, for reachability audits
// (spec §8 invariant 4) and tests.
func (a *Allocator) IsAllocated(id PageID) bool {
	i := int(id)
	if i < 0 || i >= a.nPages {
		return false
	}
	return bitSet(a.bits, i)
}

// Dump writes the entire bitmap region (pages 1..B) in one pass. Each
// bitmap page holds pageSize bytes of the bit array; the last page is
// zero-padded.
func (a *Allocator) Dump() error {
	pageSize := a.pager.PageSize()
	for p := 0; p < a.nBitmap; p++ {
		buf := make([]byte, pageSize)
		start := p * pageSize
		end := start + pageSize
		if end > len(a.bits) {
			end = len(a.bits)
		}
		if start < len(a.bits) {
			copy(buf, a.bits[start:end])
		}
		if err := a.pager.WritePage(PageID(1+p), buf); err != nil {
			return fmt.Errorf("allocator: dump bitmap page %d: %w", p, err)
		}
	}
	return nil
}

// Load reads the entire bitmap region (pages 1..B) in one pass, replacing
// the in-memory bitmap. Used by Open to resume a prior session.
func (a *Allocator) Load() error {
	pageSize := a.pager.PageSize()
	for p := 0; p < a.nBitmap; p++ {
		buf, err := a.pager.ReadPage(PageID(1 + p))
		if err != nil {
			return fmt.Errorf("allocator: load bitmap page %d: %w", p, err)
		}
		start := p * pageSize
		end := start + pageSize
		if end > len(a.bits) {
			end = len(a.bits)
		}
		if start < len(a.bits) {
			copy(a.bits[start:end], buf[:end-start])
		}
	}
	return nil
}
