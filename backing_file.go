package pagedb

import (
	"os"

	"github.com/chinarouter/btree/interfaces"
)

// fileBacking adapts *os.File to interfaces.Backing. This is the default,
// portable backing used by Create/Open.
type fileBacking struct {
	f *os.File
}

// OpenFileBacking opens (or creates) path as a plain file backing.
func OpenFileBacking(path string) (interfaces.Backing, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &fileBacking{f: f}, nil
}

func (b *fileBacking) ReadAt(p []byte, off int64) (int, error)  { return b.f.ReadAt(p, off) }
func (b *fileBacking) WriteAt(p []byte, off int64) (int, error) { return b.f.WriteAt(p, off) }
func (b *fileBacking) Truncate(size int64) error                { return b.f.Truncate(size) }
func (b *fileBacking) Sync() error                               { return b.f.Sync() }
func (b *fileBacking) Close() error                              { return b.f.Close() }

// sizeInPages returns how many whole pages the backing file already holds.
// Used by Open to recompute nPages without trusting the metadata page
// alone.
func sizeInPages(path string, pageSize int) (int, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return int(fi.Size()) / pageSize, nil
}
