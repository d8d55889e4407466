package pagedb

import (
	"os"

	"github.com/chinarouter/btree/interfaces"
	"github.com/ncw/directio"
)

// directBacking adapts an O_DIRECT-opened *os.File to interfaces.Backing.
// O_DIRECT requires aligned offsets and aligned, aligned-size buffers.
// Every Pager access is exactly one PageSize-aligned page, and
// directio.AlignSize divides evenly into the default 4096-byte page size,
// so offsets and sizes are already aligned; the caller's buffer may not
// be, so ReadAt and WriteAt copy through a freshly allocated aligned block.
type directBacking struct {
	f *os.File
}

// OpenDirectBacking opens (or creates) path with O_DIRECT, bypassing the OS
// page cache. pageSize must be a multiple of directio.AlignSize. This is an
// opt-in backing (see SPEC_FULL.md §11): O_DIRECT is Linux-specific and not
// every filesystem honors it, so Create/Open default to OpenFileBacking.
func OpenDirectBacking(path string, pageSize int) (interfaces.Backing, error) {
	if pageSize%directio.AlignSize != 0 {
		return nil, ErrStorageFailure
	}
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &directBacking{f: f}, nil
}

// AlignedPage allocates a zeroed, alignment-safe page-sized buffer for use
// with a directBacking-backed Pager.
func AlignedPage(pageSize int) []byte {
	return directio.AlignedBlock(pageSize)
}

func (b *directBacking) ReadAt(p []byte, off int64) (int, error) {
	buf := AlignedPage(len(p))
	n, err := b.f.ReadAt(buf, off)
	copy(p, buf)
	return n, err
}

func (b *directBacking) WriteAt(p []byte, off int64) (int, error) {
	buf := AlignedPage(len(p))
	copy(buf, p)
	return b.f.WriteAt(buf, off)
}

func (b *directBacking) Truncate(size int64) error { return b.f.Truncate(size) }
func (b *directBacking) Sync() error                { return b.f.Sync() }
func (b *directBacking) Close() error                { return b.f.Close() }
