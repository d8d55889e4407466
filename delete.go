package pagedb

// Delete removes key if present (spec §4.5 "Deletion"). Like Insert, it is
// top-down: before descending into a child, the child is topped up to at
// least minFill+1 keys (by rotation or merge) so that whatever happens
// further down can never leave it underflowed. delete on an absent key is
// a no-op (spec §6).
func (t *BTree) Delete(key []byte) (bool, error) {
	key = padKey(key, t.layout.keyLen)

	if t.root.NKeys == 0 {
		return false, nil
	}

	deleted, err := t.deleteFrom(t.root, key, true)
	if err != nil {
		return deleted, err
	}

	// A refill merge on the way down can empty the root even when key
	// turns out to be absent, so contract it either way.
	if !t.root.Leaf && t.root.NKeys == 0 {
		if err := t.collapseRoot(); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// collapseRoot handles the case where the root lost its only key and is
// now a bare internal node with a single child: that child's content
// becomes the root's content, written into the root's own (stable) page
// id, and the child's now-orphaned page is freed.
func (t *BTree) collapseRoot() error {
	childID := t.root.Children[0]
	child, err := t.loadNode(childID)
	if err != nil {
		return err
	}

	rootPage := t.root.Page
	child.Page = rootPage
	child.Parent = NoPage

	if !child.Leaf {
		ids := append([]PageID(nil), child.Children[:child.NKeys+1]...)
		if err := t.reparent(ids, rootPage); err != nil {
			return err
		}
	}
	if err := t.storeNode(child); err != nil {
		return err
	}
	if err := t.alloc.Free(childID); err != nil {
		return err
	}
	t.root = child
	return nil
}

// deleteFrom implements spec §4.5's four cases at node x searching for
// key. freeValue controls whether a leaf match frees its value page:
// it is false only while chasing a predecessor/successor key down to its
// leaf on behalf of deleteInternalFound, whose promotion already took
// ownership of that value page (the key's *original* value was freed at
// the promotion site, not here).
func (t *BTree) deleteFrom(node *Node, key []byte, freeValue bool) (bool, error) {
	idx, found := locate(node, key)

	if node.Leaf {
		if !found { // case 3
			return false, nil
		}
		return true, t.leafDeleteAt(node, idx, freeValue) // case 1
	}

	if found {
		return t.deleteInternalFound(node, idx) // case 2
	}
	return t.deleteDescend(node, idx, key, freeValue) // case 4
}

func (t *BTree) leafDeleteAt(node *Node, idx int, freeValue bool) error {
	if freeValue {
		if err := t.alloc.Free(node.Vals[idx]); err != nil {
			return err
		}
	}
	for i := idx; i < node.NKeys-1; i++ {
		node.Keys[i] = node.Keys[i+1]
		node.Vals[i] = node.Vals[i+1]
	}
	node.NKeys--
	return t.storeNode(node)
}

// deleteInternalFound implements case 2: key is keys[idx] of internal
// node x. Promoting a predecessor/successor into node.Vals[idx] moves
// that value page's ownership up to node; the key's own original value
// page (the one being deleted) is freed right here, and the recursive
// delete that removes the now-duplicated predecessor/successor leaf entry
// is told not to free it a second time.
func (t *BTree) deleteInternalFound(node *Node, idx int) (bool, error) {
	left, err := t.loadNode(node.Children[idx])
	if err != nil {
		return false, err
	}
	right, err := t.loadNode(node.Children[idx+1])
	if err != nil {
		return false, err
	}
	min := t.layout.minFill()

	switch {
	case left.NKeys > min:
		predKey, predVal, err := t.subtreeMax(left)
		if err != nil {
			return false, err
		}
		oldVal := node.Vals[idx]
		node.Keys[idx], node.Vals[idx] = predKey, predVal
		if err := t.storeNode(node); err != nil {
			return false, err
		}
		if err := t.alloc.Free(oldVal); err != nil {
			return false, err
		}
		return t.deleteFrom(left, predKey, false)

	case right.NKeys > min:
		succKey, succVal, err := t.subtreeMin(right)
		if err != nil {
			return false, err
		}
		oldVal := node.Vals[idx]
		node.Keys[idx], node.Vals[idx] = succKey, succVal
		if err := t.storeNode(node); err != nil {
			return false, err
		}
		if err := t.alloc.Free(oldVal); err != nil {
			return false, err
		}
		return t.deleteFrom(right, succKey, false)

	default:
		merged, moved := t.mergeSiblings(left, right, node.Keys[idx], node.Vals[idx])
		t.removeSeparator(node, idx)
		if err := t.alloc.Free(right.Page); err != nil {
			return false, err
		}
		if err := t.storeNode(merged); err != nil {
			return false, err
		}
		if err := t.storeNode(node); err != nil {
			return false, err
		}
		if len(moved) > 0 {
			if err := t.reparent(moved, merged.Page); err != nil {
				return false, err
			}
		}
		// the separator we just merged in is exactly the key being
		// deleted, now guaranteed present and safely removable, value
		// page and all.
		return t.deleteFrom(merged, merged.Keys[left.NKeys], true)
	}
}

// deleteDescend implements case 4: key is absent from node x, which is
// internal; refill the child about to be descended into if it is at
// minimum fill, then recurse.
func (t *BTree) deleteDescend(node *Node, idx int, key []byte, freeValue bool) (bool, error) {
	child, err := t.loadNode(node.Children[idx])
	if err != nil {
		return false, err
	}
	if child.NKeys == t.layout.minFill() {
		child, err = t.refill(node, idx, child)
		if err != nil {
			return false, err
		}
	}
	return t.deleteFrom(child, key, freeValue)
}

// refill tops up the child at node.Children[idx] to more than minFill
// keys: rotate from a sibling with spare keys, or merge with a sibling if
// neither has any to spare. Returns the (possibly different, if merged)
// node to descend into.
func (t *BTree) refill(node *Node, idx int, child *Node) (*Node, error) {
	min := t.layout.minFill()

	if idx > 0 {
		left, err := t.loadNode(node.Children[idx-1])
		if err != nil {
			return nil, err
		}
		if left.NKeys > min {
			return t.rotateRight(node, idx, left, child)
		}
	}
	if idx < node.NKeys {
		right, err := t.loadNode(node.Children[idx+1])
		if err != nil {
			return nil, err
		}
		if right.NKeys > min {
			return t.rotateLeft(node, idx, child, right)
		}
	}

	if idx > 0 {
		left, err := t.loadNode(node.Children[idx-1])
		if err != nil {
			return nil, err
		}
		merged, moved := t.mergeSiblings(left, child, node.Keys[idx-1], node.Vals[idx-1])
		t.removeSeparator(node, idx-1)
		if err := t.alloc.Free(child.Page); err != nil {
			return nil, err
		}
		if err := t.storeNode(merged); err != nil {
			return nil, err
		}
		if err := t.storeNode(node); err != nil {
			return nil, err
		}
		if len(moved) > 0 {
			if err := t.reparent(moved, merged.Page); err != nil {
				return nil, err
			}
		}
		return merged, nil
	}

	right, err := t.loadNode(node.Children[idx+1])
	if err != nil {
		return nil, err
	}
	merged, moved := t.mergeSiblings(child, right, node.Keys[idx], node.Vals[idx])
	t.removeSeparator(node, idx)
	if err := t.alloc.Free(right.Page); err != nil {
		return nil, err
	}
	if err := t.storeNode(merged); err != nil {
		return nil, err
	}
	if err := t.storeNode(node); err != nil {
		return nil, err
	}
	if len(moved) > 0 {
		if err := t.reparent(moved, merged.Page); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// rotateRight moves x's separator key into c's front, the left sibling's
// last key up to x, and (if internal) the left sibling's last child
// pointer to c's front.
func (t *BTree) rotateRight(node *Node, idx int, left, c *Node) (*Node, error) {
	for i := c.NKeys; i > 0; i-- {
		c.Keys[i] = c.Keys[i-1]
		c.Vals[i] = c.Vals[i-1]
	}
	c.Keys[0] = node.Keys[idx-1]
	c.Vals[0] = node.Vals[idx-1]

	var moved PageID
	movedChild := false
	if !c.Leaf {
		for i := c.NKeys + 1; i > 0; i-- {
			c.Children[i] = c.Children[i-1]
		}
		c.Children[0] = left.Children[left.NKeys]
		moved = c.Children[0]
		movedChild = true
	}
	c.NKeys++

	node.Keys[idx-1] = left.Keys[left.NKeys-1]
	node.Vals[idx-1] = left.Vals[left.NKeys-1]
	left.NKeys--

	if err := t.storeNode(left); err != nil {
		return nil, err
	}
	if err := t.storeNode(c); err != nil {
		return nil, err
	}
	if err := t.storeNode(node); err != nil {
		return nil, err
	}
	if movedChild {
		if err := t.reparent([]PageID{moved}, c.Page); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// rotateLeft is the symmetric move from a right sibling with spare keys.
func (t *BTree) rotateLeft(node *Node, idx int, c, right *Node) (*Node, error) {
	c.Keys[c.NKeys] = node.Keys[idx]
	c.Vals[c.NKeys] = node.Vals[idx]

	var moved PageID
	movedChild := false
	if !c.Leaf {
		c.Children[c.NKeys+1] = right.Children[0]
		moved = c.Children[c.NKeys+1]
		movedChild = true
	}
	c.NKeys++

	node.Keys[idx] = right.Keys[0]
	node.Vals[idx] = right.Vals[0]

	for i := 0; i < right.NKeys-1; i++ {
		right.Keys[i] = right.Keys[i+1]
		right.Vals[i] = right.Vals[i+1]
	}
	if !right.Leaf {
		for i := 0; i < right.NKeys; i++ {
			right.Children[i] = right.Children[i+1]
		}
	}
	right.NKeys--

	if err := t.storeNode(right); err != nil {
		return nil, err
	}
	if err := t.storeNode(c); err != nil {
		return nil, err
	}
	if err := t.storeNode(node); err != nil {
		return nil, err
	}
	if movedChild {
		if err := t.reparent([]PageID{moved}, c.Page); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// removeSeparator deletes keys[sep] and chld[sep+1] from node, shifting
// later entries left by one and decrementing n_keys. Shared by both merge
// sites (case 2's internal merge and case 4's refill merge).
func (t *BTree) removeSeparator(node *Node, sep int) {
	for i := sep; i < node.NKeys-1; i++ {
		node.Keys[i] = node.Keys[i+1]
		node.Vals[i] = node.Vals[i+1]
	}
	for i := sep + 1; i < node.NKeys; i++ {
		node.Children[i] = node.Children[i+1]
	}
	node.NKeys--
}

// mergeSiblings combines left, a separator (key, val), and right into one
// node written at left's page id (spec §4.5 "Merge"/CLRS-style: the
// separator becomes a real key in the merged node for both leaf and
// internal merges). Returns the merged node and, for internal merges, the
// ids of right's children that now need reparenting to the merged page.
func (t *BTree) mergeSiblings(left, right *Node, sepKey []byte, sepVal PageID) (*Node, []PageID) {
	merged := NewNode(t.layout, left.Page, left.Parent, left.Leaf)

	n := 0
	for i := 0; i < left.NKeys; i++ {
		merged.Keys[n], merged.Vals[n] = left.Keys[i], left.Vals[i]
		n++
	}
	leftChildren := 0
	if !left.Leaf {
		leftChildren = left.NKeys + 1
		copy(merged.Children[:leftChildren], left.Children[:leftChildren])
	}

	merged.Keys[n], merged.Vals[n] = sepKey, sepVal
	n++

	for i := 0; i < right.NKeys; i++ {
		merged.Keys[n+i], merged.Vals[n+i] = right.Keys[i], right.Vals[i]
	}
	n += right.NKeys
	merged.NKeys = n

	var moved []PageID
	if !left.Leaf {
		rightChildren := right.NKeys + 1
		copy(merged.Children[leftChildren:leftChildren+rightChildren], right.Children[:rightChildren])
		moved = append([]PageID(nil), right.Children[:rightChildren]...)
	}

	return merged, moved
}
