package pagedb

import (
	"fmt"
	"io"
	"log"

	"github.com/chinarouter/btree/interfaces"
)

// magic identifies a pagedb file; version allows the on-disk format to
// evolve without breaking Open on older files silently (spec §6 "Page 0 —
// metadata").
const (
	magic          uint32 = 0x70616744 // "pagD"
	formatVersion  uint16 = 1
	metaHeaderSize        = 4 + 2 + 2 + idSize + 2 + 2 + idSize // magic+version+pageSize+nPages+keyLen+kMax+root
)

// Logger is the minimal sink the façade writes diagnostics and Print dumps
// to. *log.Logger satisfies it trivially; the zero value used by Create
// and Open discards everything.
type Logger interface {
	Printf(format string, args ...any)
}

var discardLogger = log.New(io.Discard, "", 0)

// DB is the façade over Pager + Allocator + BTree (spec §5 "External
// Interfaces"). It owns the metadata page and is the only type callers of
// this package construct directly.
type DB struct {
	pager  *Pager
	alloc  *Allocator
	tree   *BTree
	layout layout
	log    Logger
	closed bool
}

// Option configures Create/Open/CreateInMemory.
type Option func(*DB)

// WithLogger injects a Logger for Print and internal diagnostics. Without
// this option the façade logs nothing.
func WithLogger(l Logger) Option {
	return func(d *DB) { d.log = l }
}

// Create makes a brand-new store at path sized to hold at least
// targetBytes (spec §5 "create(path, target_bytes)"): nPages =
// ceil(targetBytes/pageSize), the file is pre-extended to that size, the
// bitmap is populated, and an empty leaf root is allocated at the first
// free page.
func Create(path string, targetBytes int64, keyLen int, opts ...Option) (*DB, error) {
	backing, err := OpenFileBacking(path)
	if err != nil {
		return nil, fmt.Errorf("pagedb: create %s: %w", path, ErrStorageFailure)
	}
	return create(backing, targetBytes, keyLen, defaultPageSize, opts...)
}

// CreateInMemory makes a store with no backing file at all, for tests and
// scratch use (SPEC_FULL.md §11).
func CreateInMemory(targetBytes int64, keyLen int, opts ...Option) (*DB, error) {
	return create(NewMemBacking(), targetBytes, keyLen, defaultPageSize, opts...)
}

const defaultPageSize = 4096

func create(backing interfaces.Backing, targetBytes int64, keyLen, pageSize int, opts ...Option) (*DB, error) {
	nPages := int((targetBytes + int64(pageSize) - 1) / int64(pageSize))
	const minPages = 8 // room for the metadata page, the bitmap, the root, and a few data pages
	if nPages < minPages {
		nPages = minPages
	}

	pager := NewPager(backing, pageSize, 0)
	if err := pager.ExtendTo(nPages); err != nil {
		return nil, err
	}

	alloc := NewAllocator(pager, nPages)
	if err := alloc.Populate(); err != nil {
		return nil, err
	}

	rootID, err := alloc.Allocate()
	if err != nil {
		return nil, err
	}
	l := newLayout(pageSize, keyLen)
	root := NewNode(l, rootID, NoPage, true)
	if err := pager.WritePage(root.Page, root.Encode(l)); err != nil {
		return nil, err
	}

	d := &DB{
		pager:  pager,
		alloc:  alloc,
		tree:   NewBTree(pager, alloc, l, root),
		layout: l,
		log:    discardLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.writeMeta(); err != nil {
		return nil, err
	}
	if err := pager.Sync(); err != nil {
		return nil, err
	}
	d.log.Printf("pagedb: created store, pages=%d keyLen=%d kMax=%d", nPages, keyLen, l.kMax)
	return d, nil
}

// Open re-reads an existing store's metadata and bitmap (spec §5
// "open(path) (re-reads metadata & bitmap)") and resumes from its root.
func Open(path string, opts ...Option) (*DB, error) {
	backing, err := OpenFileBacking(path)
	if err != nil {
		return nil, fmt.Errorf("pagedb: open %s: %w", path, ErrStorageFailure)
	}

	probe := NewPager(backing, defaultPageSize, 0)
	metaBuf, err := probe.ReadPage(0)
	if err != nil {
		return nil, err
	}
	m, err := decodeMeta(metaBuf)
	if err != nil {
		return nil, err
	}

	nPages, err := sizeInPages(path, m.pageSize)
	if err != nil {
		return nil, fmt.Errorf("pagedb: open %s: %w", path, ErrStorageFailure)
	}

	pager := NewPager(backing, m.pageSize, nPages)
	alloc := NewAllocator(pager, nPages)
	if err := alloc.Load(); err != nil {
		return nil, err
	}

	l := newLayout(m.pageSize, m.keyLen)
	rootBuf, err := pager.ReadPage(m.rootPage)
	if err != nil {
		return nil, err
	}
	root, err := DecodeNode(rootBuf, l)
	if err != nil {
		return nil, err
	}

	d := &DB{
		pager:  pager,
		alloc:  alloc,
		tree:   NewBTree(pager, alloc, l, root),
		layout: l,
		log:    discardLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log.Printf("pagedb: opened store, pages=%d keyLen=%d kMax=%d root=%d", nPages, m.keyLen, l.kMax, m.rootPage)
	return d, nil
}

// Insert upserts key -> value. The metadata page is never rewritten here:
// root stability (spec "Root stability") means neither root_page_id nor
// n_pages ever changes after create.
func (d *DB) Insert(key, value []byte) error {
	if d.closed {
		return ErrClosed
	}
	return d.tree.Insert(key, value)
}

// Search looks up key, returning ok=false (no error) if absent.
func (d *DB) Search(key []byte) ([]byte, bool, error) {
	if d.closed {
		return nil, false, ErrClosed
	}
	return d.tree.Search(key)
}

// Delete removes key if present, reporting whether it was.
func (d *DB) Delete(key []byte) (bool, error) {
	if d.closed {
		return false, ErrClosed
	}
	return d.tree.Delete(key)
}

// Close syncs the backing and releases it. The metadata page is not
// rewritten here; it was written by create and never changes. The DB is
// unusable afterward.
func (d *DB) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.pager.Sync(); err != nil {
		return err
	}
	return d.pager.Close()
}

// Stats is a read-only snapshot of the store's shape (SPEC_FULL.md §12).
type Stats struct {
	PageCount int
	FreePages int
	KeyLen    int
	Fanout    int
	Height    int
	KeyCount  int
}

// Stats walks the tree once to count keys and height, and the bitmap once
// to count free pages.
func (d *DB) Stats() (Stats, error) {
	free := 0
	for i := d.alloc.FirstAllocatable(); int(i) < d.pager.NPages(); i++ {
		if !d.alloc.IsAllocated(i) {
			free++
		}
	}
	height, count, err := d.walkStats(d.tree.root, 1)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		PageCount: d.pager.NPages(),
		FreePages: free,
		KeyLen:    d.layout.keyLen,
		Fanout:    d.layout.kMax,
		Height:    height,
		KeyCount:  count,
	}, nil
}

func (d *DB) walkStats(n *Node, depth int) (height, count int, err error) {
	count = n.NKeys
	height = depth
	if n.Leaf {
		return height, count, nil
	}
	for i := 0; i <= n.NKeys; i++ {
		child, err := d.tree.loadNode(n.Children[i])
		if err != nil {
			return 0, 0, err
		}
		h, c, err := d.walkStats(child, depth+1)
		if err != nil {
			return 0, 0, err
		}
		if h > height {
			height = h
		}
		count += c
	}
	return height, count, nil
}

// Print writes an indented tree dump to the injected Logger.
func (d *DB) Print() {
	d.printNode(d.tree.root, 0)
}

func (d *DB) printNode(n *Node, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	kind := "internal"
	if n.Leaf {
		kind = "leaf"
	}
	d.log.Printf("%spage=%d (%s) nkeys=%d keys=%v", indent, n.Page, kind, n.NKeys, n.Keys[:n.NKeys])
	if n.Leaf {
		return
	}
	for i := 0; i <= n.NKeys; i++ {
		child, err := d.tree.loadNode(n.Children[i])
		if err != nil {
			d.log.Printf("%s  <error loading child %d: %v>", indent, n.Children[i], err)
			continue
		}
		d.printNode(child, depth+1)
	}
}

type meta struct {
	pageSize int
	nPages   int
	keyLen   int
	kMax     int
	rootPage PageID
}

func (d *DB) writeMeta() error {
	buf := make([]byte, d.pager.PageSize())
	be32put(buf[0:4], magic)
	be16put(buf[4:6], formatVersion)
	be16put(buf[6:8], uint16(d.pager.PageSize()))
	putID(buf[8:8+idSize], PageID(d.pager.NPages()))
	off := 8 + idSize
	be16put(buf[off:off+2], uint16(d.layout.keyLen))
	be16put(buf[off+2:off+4], uint16(d.layout.kMax))
	putID(buf[off+4:off+4+idSize], d.tree.RootPageID())
	return d.pager.WritePage(0, buf)
}

func decodeMeta(buf []byte) (meta, error) {
	if len(buf) < metaHeaderSize {
		return meta{}, fmt.Errorf("pagedb: metadata page too short: %w", ErrCorruptNode)
	}
	if be32get(buf[0:4]) != magic {
		return meta{}, fmt.Errorf("pagedb: bad magic: %w", ErrCorruptNode)
	}
	if be16get(buf[4:6]) != formatVersion {
		return meta{}, fmt.Errorf("pagedb: unsupported format version %d: %w", be16get(buf[4:6]), ErrCorruptNode)
	}
	pageSize := int(be16get(buf[6:8]))
	nPages := int(getID(buf[8 : 8+idSize]))
	off := 8 + idSize
	keyLen := int(be16get(buf[off : off+2]))
	kMax := int(be16get(buf[off+2 : off+4]))
	rootPage := getID(buf[off+4 : off+4+idSize])
	if pageSize <= 0 || keyLen <= 0 || kMax <= 0 {
		return meta{}, fmt.Errorf("pagedb: invalid metadata: %w", ErrCorruptNode)
	}
	return meta{pageSize: pageSize, nPages: nPages, keyLen: keyLen, kMax: kMax, rootPage: rootPage}, nil
}
