package pagedb

import (
	"bytes"
	"fmt"
)

// BTree is the ordered map over fixed-width keys (spec §4.5). It uses the
// Allocator to obtain pages, the Pager to persist node/value pages, and
// caches nothing across top-level operations except the root node (spec
// §3 "Ownership", §5 "Resource Model").
type BTree struct {
	pager  *Pager
	alloc  *Allocator
	layout layout
	root   *Node
}

// NewBTree wires a tree over an already-open pager/allocator with root
// loaded as the current root node.
func NewBTree(pager *Pager, alloc *Allocator, l layout, root *Node) *BTree {
	return &BTree{pager: pager, alloc: alloc, layout: l, root: root}
}

// RootPageID returns the root node's (stable) page id, for the façade to
// persist in the metadata page.
func (t *BTree) RootPageID() PageID { return t.root.Page }

func (t *BTree) loadNode(id PageID) (*Node, error) {
	buf, err := t.pager.ReadPage(id)
	if err != nil {
		return nil, err
	}
	return DecodeNode(buf, t.layout)
}

func (t *BTree) storeNode(n *Node) error {
	return t.pager.WritePage(n.Page, n.Encode(t.layout))
}

// reparent updates Parent on every node in ids to newParent. Needed after
// a split/merge moves a batch of children from one parent page to another
// (spec §4.5 invariant 5).
func (t *BTree) reparent(ids []PageID, newParent PageID) error {
	for _, id := range ids {
		n, err := t.loadNode(id)
		if err != nil {
			return err
		}
		if n.Parent == newParent {
			continue
		}
		n.Parent = newParent
		if err := t.storeNode(n); err != nil {
			return err
		}
	}
	return nil
}

// locate scans node's keys left to right (spec §4.5 Search) and returns
// the first index i with keys[i] >= key. If found, keys[idx] == key
// exactly; otherwise idx is the child slot to descend into (chld[idx]).
func locate(n *Node, key []byte) (idx int, found bool) {
	for i := 0; i < n.NKeys; i++ {
		c := bytes.Compare(n.Keys[i], key)
		if c == 0 {
			return i, true
		}
		if c > 0 {
			return i, false
		}
	}
	return n.NKeys, false
}

// Search descends from the root, returning the stored value on an exact
// key match or ok=false on a leaf miss (spec §4.5, §6: not-found is not an
// error here).
func (t *BTree) Search(key []byte) (value []byte, ok bool, err error) {
	key = padKey(key, t.layout.keyLen)
	node := t.root
	for {
		idx, found := locate(node, key)
		if found {
			v, err := readValue(t.pager, node.Vals[idx])
			if err != nil {
				return nil, false, err
			}
			return v, true, nil
		}
		if node.Leaf {
			return nil, false, nil
		}
		child, err := t.loadNode(node.Children[idx])
		if err != nil {
			return nil, false, err
		}
		node = child
	}
}

// subtreeMax returns the rightmost (key, value-page-id) pair reachable
// from node by always following the last child — the in-order
// predecessor of any separator at this subtree's position (spec §4.5
// deletion case 2). Read-only: does not mutate or rebalance anything.
func (t *BTree) subtreeMax(node *Node) ([]byte, PageID, error) {
	for !node.Leaf {
		child, err := t.loadNode(node.Children[node.NKeys])
		if err != nil {
			return nil, 0, err
		}
		node = child
	}
	if node.NKeys == 0 {
		return nil, 0, fmt.Errorf("btree: empty subtree has no predecessor: %w", ErrCorruptNode)
	}
	return node.Keys[node.NKeys-1], node.Vals[node.NKeys-1], nil
}

// subtreeMin is the symmetric in-order successor lookup, always following
// the first child.
func (t *BTree) subtreeMin(node *Node) ([]byte, PageID, error) {
	for !node.Leaf {
		child, err := t.loadNode(node.Children[0])
		if err != nil {
			return nil, 0, err
		}
		node = child
	}
	if node.NKeys == 0 {
		return nil, 0, fmt.Errorf("btree: empty subtree has no successor: %w", ErrCorruptNode)
	}
	return node.Keys[0], node.Vals[0], nil
}
