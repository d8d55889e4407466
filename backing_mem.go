package pagedb

import (
	"sync"

	"github.com/chinarouter/btree/interfaces"
	"github.com/dsnet/golib/memfile"
)

// memBacking is an in-memory interfaces.Backing over memfile.File, used by
// CreateInMemory and by the test suite to exercise the Allocator and
// B-tree without touching a real disk. memfile.File already satisfies
// ReadAt/WriteAt/Close, so only growth and sync bookkeeping are added here.
type memBacking struct {
	mu sync.Mutex
	mf *memfile.File
}

// NewMemBacking returns a fresh, empty in-memory Backing.
func NewMemBacking() interfaces.Backing {
	return &memBacking{mf: memfile.New(nil)}
}

func (b *memBacking) ReadAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mf.ReadAt(p, off)
}

func (b *memBacking) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mf.WriteAt(p, off)
}

// Truncate grows (or shrinks) the in-memory buffer to exactly size bytes.
// memfile has no Truncate of its own, so the backing buffer is
// reallocated and the memfile.File re-wrapped around it.
func (b *memBacking) Truncate(size int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	grown := make([]byte, size)
	copy(grown, b.mf.Bytes())
	b.mf = memfile.New(grown)
	return nil
}

// Sync is a no-op: there is nothing behind the buffer to flush.
func (b *memBacking) Sync() error { return nil }

// Close releases the backing buffer.
func (b *memBacking) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mf.Close()
}
