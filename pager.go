package pagedb

import (
	"fmt"

	"github.com/chinarouter/btree/interfaces"
)

// Pager wraps a Backing and offers raw, page-granular I/O. It holds no
// cache: every ReadPage issues a positional read, every WritePage a
// positional write, preserving read-after-write visibility without a
// buffering layer.
type Pager struct {
	backing  interfaces.Backing
	pageSize int
	nPages   int
}

// NewPager wraps an already-open Backing. nPages is the current extent of
// the file in pages (0 for a brand-new, empty backing).
func NewPager(backing interfaces.Backing, pageSize, nPages int) *Pager {
	return &Pager{backing: backing, pageSize: pageSize, nPages: nPages}
}

func (p *Pager) PageSize() int { return p.pageSize }
func (p *Pager) NPages() int   { return p.nPages }

// ExtendTo grows the backing file to at least nPages pages. Database
// creation pre-extends the whole file up front (spec §4.1/§4.6); this is
// also used if a caller ever needs to grow an already-open store.
func (p *Pager) ExtendTo(nPages int) error {
	if nPages <= p.nPages {
		return nil
	}
	if err := p.backing.Truncate(int64(nPages) * int64(p.pageSize)); err != nil {
		return fmt.Errorf("pager: extend to %d pages: %w", nPages, ErrStorageFailure)
	}
	p.nPages = nPages
	return nil
}

// ReadPage returns exactly PageSize bytes read from page id. A short read
// is a storage failure, never silently zero-padded.
func (p *Pager) ReadPage(id PageID) ([]byte, error) {
	buf := make([]byte, p.pageSize)
	off := int64(id) * int64(p.pageSize)
	n, err := p.backing.ReadAt(buf, off)
	if err != nil || n != p.pageSize {
		return nil, fmt.Errorf("pager: read page %d (%d/%d bytes, err=%v): %w", id, n, p.pageSize, err, ErrStorageFailure)
	}
	return buf, nil
}

// WritePage writes exactly PageSize bytes at page id. len(data) must equal
// PageSize; callers always hand over a freshly-sized node/value buffer.
func (p *Pager) WritePage(id PageID, data []byte) error {
	if len(data) != p.pageSize {
		return fmt.Errorf("pager: write page %d: buffer is %d bytes, want %d: %w", id, len(data), p.pageSize, ErrStorageFailure)
	}
	off := int64(id) * int64(p.pageSize)
	n, err := p.backing.WriteAt(data, off)
	if err != nil || n != p.pageSize {
		return fmt.Errorf("pager: write page %d (%d/%d bytes, err=%v): %w", id, n, p.pageSize, err, ErrStorageFailure)
	}
	return nil
}

// Sync flushes the backing to durable storage.
func (p *Pager) Sync() error {
	if err := p.backing.Sync(); err != nil {
		return fmt.Errorf("pager: sync: %w", ErrStorageFailure)
	}
	return nil
}

// Close releases the backing file descriptor / buffer.
func (p *Pager) Close() error {
	return p.backing.Close()
}
