package pagedb

// Insert upserts key -> value (spec §4.5 "Insertion (upsert)"). Splitting
// is proactive: any node the descent is about to enter is split first if
// full, so the node currently being mutated always has room and no write
// path ever recurses back up to fix an overflow (design note 9).
func (t *BTree) Insert(key, value []byte) error {
	key = padKey(key, t.layout.keyLen)

	if t.root.NKeys == t.layout.kMax {
		if err := t.splitRoot(); err != nil {
			return err
		}
	}
	return t.insertNonFull(t.root, key, value)
}

// insertNonFull inserts into node, which the caller guarantees is not
// full. It recurses into children, splitting a full child before
// descending into it.
func (t *BTree) insertNonFull(node *Node, key, value []byte) error {
	idx, found := locate(node, key)
	if found {
		return t.replaceValue(node, idx, value)
	}

	if node.Leaf {
		return t.leafInsertAt(node, idx, key, value)
	}

	child, err := t.loadNode(node.Children[idx])
	if err != nil {
		return err
	}
	if child.NKeys == t.layout.kMax {
		if err := t.splitChild(node, idx, child); err != nil {
			return err
		}
		// The split may have changed which side key belongs on; re-locate
		// in the (now one-key-larger) parent.
		idx, found = locate(node, key)
		if found {
			return t.replaceValue(node, idx, value)
		}
		child, err = t.loadNode(node.Children[idx])
		if err != nil {
			return err
		}
	}
	return t.insertNonFull(child, key, value)
}

// replaceValue handles the "key already present" upsert path: write the
// new value to a freshly allocated page, then free the old value page,
// then persist node.
func (t *BTree) replaceValue(node *Node, idx int, value []byte) error {
	oldVal := node.Vals[idx]
	newVal, err := writeValue(t.pager, t.alloc, value)
	if err != nil {
		return err
	}
	if err := t.alloc.Free(oldVal); err != nil {
		return err
	}
	node.Vals[idx] = newVal
	return t.storeNode(node)
}

// leafInsertAt shifts keys/vals right from idx to make room, then writes
// the new pair (spec §4.5 "At a leaf with room").
func (t *BTree) leafInsertAt(node *Node, idx int, key []byte, value []byte) error {
	valID, err := writeValue(t.pager, t.alloc, value)
	if err != nil {
		return err
	}
	for i := node.NKeys; i > idx; i-- {
		node.Keys[i] = node.Keys[i-1]
		node.Vals[i] = node.Vals[i-1]
	}
	node.Keys[idx] = key
	node.Vals[idx] = valID
	node.NKeys++
	return t.storeNode(node)
}

// splitChild splits the full child at parent.Children[idx] (spec §4.5
// "Split of node N", the "N is not the root" branch). The new right
// sibling's page is allocated before any shared state is mutated (spec §7:
// pre-validate before any page mutation), so a NoSpace here leaves the
// tree untouched.
func (t *BTree) splitChild(parent *Node, idx int, child *Node) error {
	rightID, err := t.alloc.Allocate()
	if err != nil {
		return err
	}

	m := t.layout.minFill() // see node.go: the size a full node's smaller half actually gets
	rightCount := child.NKeys - (m + 1)

	right := NewNode(t.layout, rightID, parent.Page, child.Leaf)
	for i := 0; i < rightCount; i++ {
		right.Keys[i] = child.Keys[m+1+i]
		right.Vals[i] = child.Vals[m+1+i]
	}
	var movedChildren []PageID
	if !child.Leaf {
		for i := 0; i <= rightCount; i++ {
			right.Children[i] = child.Children[m+1+i]
		}
		movedChildren = append([]PageID(nil), right.Children[:rightCount+1]...)
	}
	right.NKeys = rightCount

	promotedKey := child.Keys[m]
	promotedVal := child.Vals[m]

	child.NKeys = m

	for i := parent.NKeys; i > idx; i-- {
		parent.Keys[i] = parent.Keys[i-1]
		parent.Vals[i] = parent.Vals[i-1]
	}
	for i := parent.NKeys + 1; i > idx+1; i-- {
		parent.Children[i] = parent.Children[i-1]
	}
	parent.Keys[idx] = promotedKey
	parent.Vals[idx] = promotedVal
	parent.Children[idx+1] = right.Page
	parent.NKeys++

	if err := t.storeNode(child); err != nil {
		return err
	}
	if err := t.storeNode(right); err != nil {
		return err
	}
	if err := t.storeNode(parent); err != nil {
		return err
	}
	if len(movedChildren) > 0 {
		if err := t.reparent(movedChildren, right.Page); err != nil {
			return err
		}
	}
	return nil
}

// splitRoot handles the root-overflow case of spec §4.5's split: the
// root's page id never changes (design note "Root stability"), so its
// contents are pushed down into a brand-new left sibling, a brand-new
// right sibling receives the upper half, and the root itself is reshaped
// into a one-key internal node pointing at the two new children.
func (t *BTree) splitRoot() error {
	leftID, err := t.alloc.Allocate()
	if err != nil {
		return err
	}
	rightID, err := t.alloc.Allocate()
	if err != nil {
		return err
	}

	old := t.root
	m := t.layout.minFill()
	rightCount := old.NKeys - (m + 1)

	left := NewNode(t.layout, leftID, old.Page, old.Leaf)
	for i := 0; i < m; i++ {
		left.Keys[i] = old.Keys[i]
		left.Vals[i] = old.Vals[i]
	}
	left.NKeys = m

	right := NewNode(t.layout, rightID, old.Page, old.Leaf)
	for i := 0; i < rightCount; i++ {
		right.Keys[i] = old.Keys[m+1+i]
		right.Vals[i] = old.Vals[m+1+i]
	}
	right.NKeys = rightCount

	var leftChildren, rightChildren []PageID
	if !old.Leaf {
		for i := 0; i <= m; i++ {
			left.Children[i] = old.Children[i]
		}
		leftChildren = append([]PageID(nil), left.Children[:m+1]...)
		for i := 0; i <= rightCount; i++ {
			right.Children[i] = old.Children[m+1+i]
		}
		rightChildren = append([]PageID(nil), right.Children[:rightCount+1]...)
	}

	promotedKey := old.Keys[m]
	promotedVal := old.Vals[m]

	newRoot := NewNode(t.layout, old.Page, NoPage, false)
	newRoot.Keys[0] = promotedKey
	newRoot.Vals[0] = promotedVal
	newRoot.Children[0] = left.Page
	newRoot.Children[1] = right.Page
	newRoot.NKeys = 1

	if err := t.storeNode(left); err != nil {
		return err
	}
	if err := t.storeNode(right); err != nil {
		return err
	}
	if err := t.storeNode(newRoot); err != nil {
		return err
	}
	if len(leftChildren) > 0 {
		if err := t.reparent(leftChildren, left.Page); err != nil {
			return err
		}
	}
	if len(rightChildren) > 0 {
		if err := t.reparent(rightChildren, right.Page); err != nil {
			return err
		}
	}

	t.root = newRoot
	return nil
}
