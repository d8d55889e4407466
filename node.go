package pagedb

import "fmt"

const (
	flagLeaf uint8 = 1 << 0
)

// nodeHeaderSize is page_id + parent_page_id + flags + n_keys.
const nodeHeaderSize = idSize + idSize + 1 + 2

// Node is the in-memory form of one B-tree node (spec §3). It is
// materialized from a page on demand, mutated, written back, and
// discarded — the tree caches no node across operations except the root
// (spec §3 "Ownership").
type Node struct {
	Page     PageID
	Parent   PageID
	Leaf     bool
	NKeys    int
	Keys     [][]byte // len == KMax, only [0:NKeys) live
	Vals     []PageID // len == KMax, value-page id per key
	Children []PageID // len == KMax+1, only used for internal nodes
}

// layout groups the fixed-width parameters derived from page size and key
// length: KMax (fanout) and the byte offsets of each array within a page.
type layout struct {
	pageSize int
	keyLen   int
	kMax     int
}

// newLayout computes KMax, the largest K such that one node of fanout K
// fits in pageSize bytes:
//
//	header + K*(keyLen+idSize) + (K+1)*idSize <= pageSize
func newLayout(pageSize, keyLen int) layout {
	avail := pageSize - nodeHeaderSize - idSize // minus header, minus the chld[0] slot
	perKey := keyLen + idSize + idSize          // key + val-id + one more child-id
	kMax := avail / perKey
	return layout{pageSize: pageSize, keyLen: keyLen, kMax: kMax}
}

// minFill is the minimum key count a non-root node may carry: the
// classic CLRS "t-1" quantity, ⌈K_MAX/2⌉-1 = (K_MAX-1)/2 under integer
// division. This is the value consistent with both the split formula
// below (a full node's smaller half after promoting one key) and
// merge-safety (two minimum nodes plus one separator must fit back in
// K_MAX keys: 2*min+1 <= K_MAX); see DESIGN.md for the derivation.
func (l layout) minFill() int { return (l.kMax - 1) / 2 }

func (l layout) keysOffset() int     { return nodeHeaderSize }
func (l layout) valsOffset() int     { return l.keysOffset() + l.kMax*l.keyLen }
func (l layout) childrenOffset() int { return l.valsOffset() + l.kMax*idSize }
func (l layout) encodedSize() int    { return l.childrenOffset() + (l.kMax+1)*idSize }

// NewNode builds an empty node for page id, ready to be populated by the
// caller and encoded.
func NewNode(l layout, page, parent PageID, leaf bool) *Node {
	return &Node{
		Page:     page,
		Parent:   parent,
		Leaf:     leaf,
		NKeys:    0,
		Keys:     make([][]byte, l.kMax),
		Vals:     make([]PageID, l.kMax),
		Children: make([]PageID, l.kMax+1),
	}
}

// padKey right-pads (or truncates, defensively) key to exactly keyLen
// bytes (spec §6 "Keys").
func padKey(key []byte, keyLen int) []byte {
	out := make([]byte, keyLen)
	n := copy(out, key)
	_ = n
	return out
}

// Encode serializes n into a fresh pageSize-byte buffer per the fixed
// layout of spec §6 ("Node page layout").
func (n *Node) Encode(l layout) []byte {
	buf := make([]byte, l.pageSize)
	putID(buf[0:idSize], n.Page)
	putID(buf[idSize:2*idSize], n.Parent)
	if n.Leaf {
		buf[2*idSize] = flagLeaf
	}
	be16put(buf[2*idSize+1:2*idSize+3], uint16(n.NKeys))

	ko, vo, co := l.keysOffset(), l.valsOffset(), l.childrenOffset()
	for i := 0; i < n.NKeys; i++ {
		copy(buf[ko+i*l.keyLen:ko+(i+1)*l.keyLen], padKey(n.Keys[i], l.keyLen))
		putID(buf[vo+i*idSize:vo+(i+1)*idSize], n.Vals[i])
	}
	if !n.Leaf {
		for i := 0; i <= n.NKeys; i++ {
			putID(buf[co+i*idSize:co+(i+1)*idSize], n.Children[i])
		}
	}
	return buf
}

// DecodeNode deserializes buf into a Node, validating n_keys <= KMax
// (spec §4.3: out-of-range values raise CorruptNode).
func DecodeNode(buf []byte, l layout) (*Node, error) {
	if len(buf) != l.pageSize {
		return nil, fmt.Errorf("node: buffer is %d bytes, want %d: %w", len(buf), l.pageSize, ErrCorruptNode)
	}
	n := &Node{
		Page:     getID(buf[0:idSize]),
		Parent:   getID(buf[idSize : 2*idSize]),
		Leaf:     buf[2*idSize]&flagLeaf != 0,
		NKeys:    int(be16get(buf[2*idSize+1 : 2*idSize+3])),
		Keys:     make([][]byte, l.kMax),
		Vals:     make([]PageID, l.kMax),
		Children: make([]PageID, l.kMax+1),
	}
	if n.NKeys < 0 || n.NKeys > l.kMax {
		return nil, fmt.Errorf("node: n_keys=%d exceeds KMax=%d: %w", n.NKeys, l.kMax, ErrCorruptNode)
	}

	ko, vo, co := l.keysOffset(), l.valsOffset(), l.childrenOffset()
	for i := 0; i < n.NKeys; i++ {
		key := make([]byte, l.keyLen)
		copy(key, buf[ko+i*l.keyLen:ko+(i+1)*l.keyLen])
		n.Keys[i] = key
		n.Vals[i] = getID(buf[vo+i*idSize : vo+(i+1)*idSize])
	}
	if !n.Leaf {
		for i := 0; i <= n.NKeys; i++ {
			n.Children[i] = getID(buf[co+i*idSize : co+(i+1)*idSize])
		}
	}
	return n, nil
}

func be16put(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func be16get(b []byte) uint16    { return uint16(b[0])<<8 | uint16(b[1]) }
